package notifier

import (
	"context"

	"go.uber.org/zap"

	"StrategyVault/internal/model"
)

// Relay returns an event subscriber that pushes notable events to the chat.
// Sends run in the background so vault operations never wait on Telegram.
func (t *TelegramNotifier) Relay(ctx context.Context) func(model.Event) {
	return func(evt model.Event) {
		if !t.Enabled() || !Notable(&evt) {
			return
		}
		text := FormatEvent(&evt)
		go func() {
			if err := t.SendWithRetry(ctx, text, 3); err != nil {
				t.Log.Error("push vault event failed", zap.String("vault", evt.VaultID), zap.Error(err))
			}
		}()
	}
}
