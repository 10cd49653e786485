package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/Mahaan-Amr/hs6tools-sub003/internal/config"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/domain"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/infra"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/metrics"

	"github.com/rs/zerolog/log"
)

var messageTemplates = map[domain.NotificationTemplate]*template.Template{
	domain.NotifyWelcome:           mustTemplate("welcome", `{{with .name}}{{.}} عزیز، {{end}}به فروشگاه خوش آمدید.`),
	domain.NotifyOrderPaid:         mustTemplate("order_paid", `سفارش {{.orderNumber}} با موفقیت پرداخت شد.{{with .refId}} کد پیگیری: {{.}}{{end}}`),
	domain.NotifyOrderRefunded:     mustTemplate("order_refunded", `مبلغ {{.amount}} ریال بابت سفارش {{.orderNumber}} به حساب شما بازگردانده شد.`),
	domain.NotifyOrderExpired:      mustTemplate("order_expired", `مهلت پرداخت سفارش {{.orderNumber}} به پایان رسید و سفارش لغو شد.`),
	domain.NotifyOrderCancelled:    mustTemplate("order_cancelled", `سفارش {{.orderNumber}} لغو شد.`),
	domain.NotifyPasswordResetCode: mustTemplate("password_reset_code", `کد بازیابی رمز عبور شما: {{.code}}`),
}

func mustTemplate(name, text string) *template.Template {
	return template.Must(template.New(name).Option("missingkey=zero").Parse(text))
}

// RenderMessage fills the template registered for tmpl.
func RenderMessage(tmpl domain.NotificationTemplate, params map[string]string) (string, error) {
	t, ok := messageTemplates[tmpl]
	if !ok {
		return "", fmt.Errorf("unknown notification template %q", tmpl)
	}
	var sb strings.Builder
	if err := t.Execute(&sb, params); err != nil {
		return "", fmt.Errorf("render %s: %w", tmpl, err)
	}
	return sb.String(), nil
}

type notificationJob struct {
	tmpl     domain.NotificationTemplate
	receptor string
	message  string
}

// NotificationDispatcher sends customer SMS from a bounded queue served by
// a fixed worker pool. A full queue drops the message.
type NotificationDispatcher struct {
	sender      infra.SMSSenderInterface
	jobs        chan notificationJob
	maxAttempts int
	backoff     time.Duration
	timeout     time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	stop   chan struct{}
}

var _ infra.NotifierInterface = (*NotificationDispatcher)(nil)

func NewNotificationDispatcher(sender infra.SMSSenderInterface, cfg config.SMSConfig) *NotificationDispatcher {
	workers := max(cfg.Workers, 1)
	queue := max(cfg.QueueSize, 1)
	d := &NotificationDispatcher{
		sender:      sender,
		jobs:        make(chan notificationJob, queue),
		maxAttempts: max(cfg.MaxAttempts, 1),
		backoff:     cfg.Backoff,
		timeout:     cfg.Timeout,
		stop:        make(chan struct{}),
	}
	if d.timeout <= 0 {
		d.timeout = 5 * time.Second
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

func (d *NotificationDispatcher) Notify(tmpl domain.NotificationTemplate, receptor string, params map[string]string) {
	receptor = strings.TrimSpace(receptor)
	if receptor == "" {
		metrics.RecordNotification("skipped")
		log.Debug().Str("template", string(tmpl)).Msg("notification skipped, no receptor")
		return
	}
	msg, err := RenderMessage(tmpl, params)
	if err != nil {
		metrics.RecordNotification("failed")
		log.Error().Err(err).Msg("notification not rendered")
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		metrics.RecordNotification("dropped")
		return
	}
	select {
	case d.jobs <- notificationJob{tmpl: tmpl, receptor: receptor, message: msg}:
	default:
		metrics.RecordNotification("dropped")
		log.Warn().Str("template", string(tmpl)).Msg("notification queue full, message dropped")
	}
}

func (d *NotificationDispatcher) worker() {
	defer d.wg.Done()
	for job := range d.jobs {
		d.deliver(job)
	}
}

func (d *NotificationDispatcher) deliver(job notificationJob) {
	var err error
retry:
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err = d.sender.Send(ctx, job.receptor, job.message)
		cancel()
		if err == nil {
			metrics.RecordNotification("sent")
			return
		}
		if attempt == d.maxAttempts {
			break
		}
		select {
		case <-time.After(d.backoff * time.Duration(attempt)):
		case <-d.stop:
			break retry
		}
	}
	metrics.RecordNotification("failed")
	log.Warn().Err(err).Str("template", string(job.tmpl)).Msg("notification delivery failed")
}

// Close stops accepting messages and waits for queued ones until ctx ends,
// after which pending retries are abandoned.
func (d *NotificationDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		close(d.stop)
		return ctx.Err()
	}
}
