// Package hooks implements the business rules that run on the event
// write path: owner materialization, allocation validation, reservation
// notifications, principal stamping and inactive-account resolution.
package hooks

import (
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/eReuse/DeviceWare/internal/mailer"
	"github.com/eReuse/DeviceWare/internal/models"
)

// ErrAlreadyAllocated rejects an allocation whose every target device
// already lists the recipient as an owner.
var ErrAlreadyAllocated = errors.New("all devices are already allocated to this account")

// ErrForeignAccount rejects a recipient e-mail belonging to an account
// with no database in common with the acting user.
var ErrForeignAccount = errors.New("account exists but belongs to another database")

type preHook func(tx *gorm.DB, event *models.Event, acting *models.Account) error

type postHook func(event *models.Event, acting *models.Account)

// Runner dispatches pre/post-write hooks per event kind.
type Runner struct {
	db      *gorm.DB
	logger  *zap.Logger
	mail    mailer.Sender
	baseURL string

	pre  map[models.EventKind]preHook
	post map[models.EventKind]postHook
}

func NewRunner(db *gorm.DB, logger *zap.Logger, mail mailer.Sender, baseURL string) *Runner {
	r := &Runner{
		db:      db,
		logger:  logger,
		mail:    mail,
		baseURL: baseURL,
	}
	r.pre = map[models.EventKind]preHook{
		models.KindAllocate:   r.preAllocate,
		models.KindDeallocate: r.preDeallocate,
		models.KindReceive:    r.preReceive,
		models.KindReserve:    r.preReserve,
	}
	r.post = map[models.EventKind]postHook{
		models.KindReserve: r.postReserve,
	}
	return r
}

// PreWrite runs inside the storing transaction, before the event row is
// created. It may mutate the event and may reject it with a domain error.
func (r *Runner) PreWrite(tx *gorm.DB, event *models.Event, acting *models.Account) error {
	StampPrincipal(event, acting)

	if hook, ok := r.pre[event.Kind]; ok {
		if err := hook(tx, event, acting); err != nil {
			return err
		}
	}
	return nil
}

// PostWrite runs after the transaction committed. Its side effects are
// fire-and-forget and never surface to the API caller.
func (r *Runner) PostWrite(event *models.Event, acting *models.Account) {
	if hook, ok := r.post[event.Kind]; ok {
		hook(event, acting)
	}
}
