package notifier

import (
	"context"
	"errors"

	"github.com/amirasaad/creditcore/pkg/notification"
)

// Multi fans a notice out to every dispatcher. All of them are tried; their
// errors are joined.
type Multi []notification.Dispatcher

func (m Multi) NotifySuccess(ctx context.Context, n notification.SuccessNotice) error {
	var errs []error
	for _, d := range m {
		if err := d.NotifySuccess(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) NotifyFailure(ctx context.Context, n notification.FailureNotice) error {
	var errs []error
	for _, d := range m {
		if err := d.NotifyFailure(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ notification.Dispatcher = Multi(nil)
