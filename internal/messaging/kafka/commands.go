package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersaga/internal/bus"
	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
)

// ErrPoisonMessage помечает сообщения, которые нет смысла обрабатывать повторно.
var ErrPoisonMessage = errors.New("poison message")

// Команды, которые принимаются извне. Шаги и компенсации выпускают только саги.
var externalCommands = map[string]func() domain.Command{
	"CreateOrder":        func() domain.Command { return &domain.CreateOrder{} },
	"UpdateOrder":        func() domain.Command { return &domain.UpdateOrder{} },
	"DeleteOrder":        func() domain.Command { return &domain.DeleteOrder{} },
	"UpdateDelivery":     func() domain.Command { return &domain.UpdateDelivery{} },
	"CreateInventory":    func() domain.Command { return &domain.CreateInventory{} },
	"AdjustInventoryQty": func() domain.Command { return &domain.AdjustInventoryQty{} },
}

// DecodeCommand восстанавливает команду из конверта.
func DecodeCommand(data []byte) (domain.Command, error) {
	var env CommandEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %v", ErrPoisonMessage, err)
	}
	factory, ok := externalCommands[env.Command]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported command %q", ErrPoisonMessage, env.Command)
	}
	ptr := factory()
	if err := json.Unmarshal(env.Payload, ptr); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrPoisonMessage, env.Command, err)
	}
	return deref(ptr), nil
}

// EncodeCommand упаковывает команду в конверт.
func EncodeCommand(cmd domain.Command) ([]byte, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}
	return json.Marshal(CommandEnvelope{Command: cmd.CommandName(), Payload: payload})
}

// deref снимает указатель. Флаг компенсации выставляет только сам заказ,
// поэтому у внешнего UpdateOrder он сбрасывается.
func deref(cmd domain.Command) domain.Command {
	switch c := cmd.(type) {
	case *domain.CreateOrder:
		return *c
	case *domain.UpdateOrder:
		c.IsCompensation = false
		return *c
	case *domain.DeleteOrder:
		return *c
	case *domain.UpdateDelivery:
		return *c
	case *domain.CreateInventory:
		return *c
	case *domain.AdjustInventoryQty:
		return *c
	}
	return cmd
}

// NewCommandHandler возвращает обработчик топика команд: сообщение
// декодируется и отправляется в шину. Отклонённая команда считается
// poison-сообщением. Таймаут не повторяется: исход команды неизвестен,
// а зависший экземпляр саги завершит сборщик.
func NewCommandHandler(sender bus.Sender, logger *log.Entry) MessageHandler {
	if logger == nil {
		logger = log.WithField("component", "kafka-commands")
	}
	return func(ctx context.Context, msg *sarama.ConsumerMessage) error {
		cmd, err := DecodeCommand(msg.Value)
		if err != nil {
			return err
		}

		res := sender.Send(ctx, cmd)
		entry := logger.WithFields(log.Fields{
			"command":  cmd.CommandName(),
			"order_id": cmd.CorrelationID(),
			"offset":   msg.Offset,
		})
		switch res.Kind {
		case bus.FailureRejected:
			return fmt.Errorf("%w: %s rejected: %v", ErrPoisonMessage, cmd.CommandName(), res.Err)
		case bus.FailureTimeout:
			entry.WithError(res.Err).Warn("command outcome timed out")
			return nil
		}
		if f, ok := res.Failed(); ok {
			entry.WithField("reason", f.Reason).Warn("command failed in aggregate")
			return nil
		}
		entry.Debug("command accepted")
		return nil
	}
}
