// Package audit records a call-started and a call-completed event for every
// governance operation.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-governance/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-governance/pkg/models"
)

// OutcomeSuccess is the outcome label of a call that returned no error.
const OutcomeSuccess = "success"

// Recorder receives one observation per completed call.
type Recorder interface {
	ObserveCall(server, method, outcome string, d time.Duration)
}

// CallAuditor logs call events under the "governance_audit" logger and feeds
// the optional Recorder. A nil *CallAuditor is valid and records nothing.
type CallAuditor struct {
	logger   *zap.Logger
	recorder Recorder
	now      func() time.Time
}

// NewCallAuditor creates a CallAuditor. recorder may be nil.
func NewCallAuditor(logger *zap.Logger, recorder Recorder) *CallAuditor {
	return &CallAuditor{
		logger:   logger.Named("governance_audit"),
		recorder: recorder,
		now:      time.Now,
	}
}

// Start records the call-started event and returns the function that records
// the call-completed event. Call it with the operation's final error:
//
//	done := auditor.Start(ctx, "certify")
//	defer func() { done(err) }()
//
// Logging problems are swallowed; auditing never fails a call.
func (a *CallAuditor) Start(ctx context.Context, method string) func(err error) {
	if a == nil {
		return func(error) {}
	}

	started := a.now()
	p, _ := models.GetProvenance(ctx)
	fields := []zap.Field{
		zap.String("method", method),
		zap.String("server", p.ServerName),
		zap.String("user_id", p.UserID),
	}
	if !p.IsLocal() {
		fields = append(fields,
			zap.String("external_source_guid", p.ExternalSource.GUID),
			zap.String("external_source_name", p.ExternalSource.Name))
	}

	a.safely(func() { a.logger.Debug("call started", fields...) })

	return func(err error) {
		elapsed := a.now().Sub(started)
		outcome := Outcome(err)

		a.safely(func() {
			done := append(fields,
				zap.String("outcome", outcome),
				zap.Duration("duration", elapsed))
			if err != nil {
				done = append(done, zap.Error(err))
				a.logger.Info("call completed", done...)
			} else {
				a.logger.Debug("call completed", done...)
			}
			if a.recorder != nil {
				a.recorder.ObserveCall(p.ServerName, method, outcome, elapsed)
			}
		})
	}
}

// Outcome returns OutcomeSuccess for nil or the error kind otherwise.
func Outcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	return string(apperrors.KindOf(err))
}

func (a *CallAuditor) safely(fn func()) {
	defer func() {
		_ = recover()
	}()
	fn()
}
