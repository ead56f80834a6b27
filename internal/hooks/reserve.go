package hooks

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"

	"github.com/eReuse/DeviceWare/internal/mailer"
	"github.com/eReuse/DeviceWare/internal/models"
)

// NotifyRecipients filters the accounts to notify about a reservation:
// accounts with elevated access to the tenant, excluding machine accounts.
func NotifyRecipients(accounts []models.Account, tenant string) []models.Account {
	recipients := make([]models.Account, 0, len(accounts))
	for _, account := range accounts {
		if !account.Active || account.Role.IsMachine() {
			continue
		}
		if !account.Role.Elevated() || !account.HasDatabase(tenant) {
			continue
		}
		recipients = append(recipients, account)
	}
	return recipients
}

// preReserve sets the 'for' and 'notify' fields of the reservation.
func (r *Runner) preReserve(tx *gorm.DB, event *models.Event, acting *models.Account) error {
	// Only admin-grade users may reserve on behalf of someone else
	if event.ForAccountID == nil || !acting.Role.Elevated() {
		id := acting.ID
		event.ForAccountID = &id
	}

	var candidates []models.Account
	err := tx.Where("role IN ? AND active = true", models.ElevatedRoles).Find(&candidates).Error
	if err != nil {
		return fmt.Errorf("failed to load notification candidates: %w", err)
	}

	event.Notify = nil
	for _, recipient := range NotifyRecipients(candidates, event.Tenant) {
		event.Notify = append(event.Notify, recipient.ID)
	}
	return nil
}

// postReserve sends the reservation mails after commit. Failures are
// logged only; the reservation itself already succeeded.
func (r *Runner) postReserve(event *models.Event, acting *models.Account) {
	go func() {
		if err := r.sendReservationMails(event); err != nil {
			r.logger.Error("Failed to send reservation mails",
				zap.String("event_id", event.ID.String()),
				zap.String("tenant", event.Tenant),
				zap.Error(err),
			)
		}
	}()
}

func (r *Runner) sendReservationMails(event *models.Event) error {
	var forAccount models.Account
	if event.ForAccountID != nil {
		if err := r.db.First(&forAccount, "id = ?", *event.ForAccountID).Error; err != nil {
			return fmt.Errorf("failed to load reservation requester: %w", err)
		}
	}

	fields := mailer.ReservationFields(event.Tenant)
	reserveURL := fmt.Sprintf("%s/%s/events/%s", r.baseURL, event.Tenant, event.ID)

	var msgs []*gomail.Message

	data := mailer.NewReservationData("Your reservation", fields, event.Devices, &forAccount, reserveURL)
	html, err := mailer.RenderReservation("reserve_for", data)
	if err != nil {
		return err
	}
	msgs = append(msgs, r.newMessage(forAccount.Email, "Your reservation", html))

	data.Title = "New reservation of devices"
	html, err = mailer.RenderReservation("reserve_notify", data)
	if err != nil {
		return err
	}
	var watchers []models.Account
	if len(event.Notify) > 0 {
		// copy out of UUIDList so GORM treats it as a plain id slice
		ids := make([]uuid.UUID, len(event.Notify))
		copy(ids, event.Notify)
		if err := r.db.Where("id IN ?", ids).Find(&watchers).Error; err != nil {
			return fmt.Errorf("failed to load notification recipients: %w", err)
		}
	}
	for _, watcher := range watchers {
		msgs = append(msgs, r.newMessage(watcher.Email, "New reservation of devices", html))
	}

	// All mails go out over the same connection
	return r.mail.SendBatch(msgs)
}

func (r *Runner) newMessage(to, subject, html string) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", r.mail.From())
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", html)
	return msg
}
