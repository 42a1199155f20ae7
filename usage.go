package authlink

import (
	"context"

	"github.com/google/uuid"
)

// trackUse appends a Use record without blocking the request. The write
// runs on a context detached from the request so a finished request does not
// cancel it; failures are logged and counted only.
func (m *TokenManager) trackUse(ctx context.Context, tokenID uuid.UUID, addr RemoteAddress) {
	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.deps.storeTimeout())
		defer cancel()

		_, err := m.deps.Store.Uses().Create(ctx, &Use{
			TokenID:       tokenID,
			RemoteAddress: addr.IP,
		})
		if err != nil {
			m.deps.Logger.Warn("token use could not be recorded", "token_id", tokenID.String(), "error", err)
			m.deps.Metrics.UsageFailed()
			return
		}
		m.deps.Metrics.UsageRecorded()
	}()
}

// Wait blocks until every pending usage write has finished.
func (m *TokenManager) Wait() {
	m.inflight.Wait()
}

// Uses lists the recorded uses of a stored token.
func (m *TokenManager) Uses(ctx context.Context, token string) ([]*Use, error) {
	ctx, cancel := context.WithTimeout(ctx, m.deps.storeTimeout())
	defer cancel()

	record, err := m.deps.Store.Tokens().FindByToken(ctx, token)
	if err != nil {
		if IsNotFound(err) {
			return nil, newError(ErrTokenNotFound, err, nil)
		}
		return nil, storeError("list_uses", err)
	}

	uses, err := m.deps.Store.Uses().ListByToken(ctx, record.ID)
	if err != nil {
		return nil, storeError("list_uses", err)
	}
	return uses, nil
}
