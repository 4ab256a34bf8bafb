package cmd

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/thaohienhomes/phochat-payments/internal/core/events"
	"github.com/thaohienhomes/phochat-payments/pkg/logger"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Publish sample order events to check subscribers`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [status]",
	Short: "Publish a sample order transition",
	Long:  `Publish an order event for status succeeded, failed, expired or late_payment through an in-process bus with the log subscriber attached`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return publishTestEvent(args[0])
	},
}

var (
	eventOrderCode int64
	eventAmount    int64
)

func publishTestEvent(status string) error {
	lg := logger.LoggerWrapper()
	bus := events.NewEventBus(lg)
	subscribeOrderLog(bus, lg)

	orderCode := eventOrderCode
	if orderCode == 0 {
		orderCode = time.Now().Unix()
	}
	orderID := uuid.NewString()

	var event events.Event
	if status == "late_payment" {
		event = events.NewLatePaymentEvent(orderID, orderCode, eventAmount, "cli")
	} else {
		transitioned, err := events.NewOrderTransitionedEvent(orderID, orderCode, "cli", eventAmount, "VND", status, events.SourceAdmin)
		if err != nil {
			return err
		}
		event = transitioned
	}

	lg.Info("publishing test event", "event_type", event.EventType(), "event_id", event.EventID())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return bus.PublishSync(ctx, event)
}

func init() {
	publishEventCmd.Flags().Int64Var(&eventOrderCode, "order-code", 0, "order code carried by the event")
	publishEventCmd.Flags().Int64Var(&eventAmount, "amount", 10000, "order amount carried by the event")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
