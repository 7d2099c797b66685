package notify

import (
	"time"

	"groupbuy_backend/pkg/logger"

	"go.uber.org/zap"
)

// EventType enumerates the engine's outbound events.
type EventType string

const (
	EventGroupJoined    EventType = "group_joined"
	EventGroupCompleted EventType = "group_completed"
	EventGroupFailed    EventType = "group_failed"
	EventGroupExpiring  EventType = "group_expiring"

	EventOrderCreated   EventType = "order_created"
	EventOrderPaid      EventType = "order_paid"
	EventOrderShipped   EventType = "order_shipped"
	EventOrderDelivered EventType = "order_delivered"
	EventOrderCancelled EventType = "order_cancelled"

	EventReturnApproved  EventType = "return_approved"
	EventReturnCompleted EventType = "return_completed"
	EventLevelUp         EventType = "level_up"
)

// Event is one fire-and-forget notification. UserID is the internal user id;
// the sender resolves delivery addressing (telegram chat id) itself.
type Event struct {
	Type   EventType
	UserID string
	Data   map[string]string
	Retry  int
}

// Sender delivers one event to the downstream channel.
type Sender interface {
	Send(event Event) error
}

// Dispatcher fans events out to a sender through a bounded queue. Enqueue
// never blocks and never fails the caller: a full queue drops to the
// dead-letter log instead.
type Dispatcher struct {
	taskQueue  chan Event
	retryQueue chan Event
	sender     Sender
	workerNum  int
	maxRetry   int
}

// GlobalDispatcher is set during server bootstrap; nil when notifications
// are not configured.
var GlobalDispatcher *Dispatcher

// NewDispatcher creates a dispatcher with workerNum workers and a queue of
// bufferSize events.
func NewDispatcher(sender Sender, workerNum, bufferSize int) *Dispatcher {
	return &Dispatcher{
		taskQueue:  make(chan Event, bufferSize),
		retryQueue: make(chan Event, bufferSize/2),
		sender:     sender,
		workerNum:  workerNum,
		maxRetry:   3,
	}
}

// Start launches the worker goroutines.
func (d *Dispatcher) Start() {
	for i := 0; i < d.workerNum; i++ {
		go d.worker(i)
	}
	go d.retryWorker()
	if logger.Log != nil {
		logger.Log.Info("Notification dispatcher started", zap.Int("workers", d.workerNum))
	}
}

// Publish enqueues an event. Safe to call from inside request handling:
// delivery failure never propagates to the triggering transaction.
func (d *Dispatcher) Publish(event Event) {
	select {
	case d.taskQueue <- event:
	default:
		d.logDropped(event, nil)
	}
}

func (d *Dispatcher) worker(id int) {
	for event := range d.taskQueue {
		if err := d.sender.Send(event); err != nil {
			if logger.Log != nil {
				logger.Log.Warn("Notification send failed",
					zap.Int("worker", id),
					zap.String("type", string(event.Type)),
					zap.String("user_id", event.UserID),
					zap.Error(err),
				)
			}

			if event.Retry < d.maxRetry {
				event.Retry++
				select {
				case d.retryQueue <- event:
				default:
					d.logDropped(event, err)
				}
			} else {
				d.logDropped(event, err)
			}
		}
	}
}

func (d *Dispatcher) retryWorker() {
	for event := range d.retryQueue {
		// Backoff grows with the attempt number.
		time.Sleep(time.Duration(event.Retry) * time.Second)

		select {
		case d.taskQueue <- event:
		default:
			d.logDropped(event, nil)
		}
	}
}

func (d *Dispatcher) logDropped(event Event, err error) {
	if logger.Log != nil {
		logger.Log.Error("Notification dropped",
			zap.String("type", string(event.Type)),
			zap.String("user_id", event.UserID),
			zap.Error(err),
		)
	}
}

// Publish is the package-level helper used by domain services. No-op when
// the dispatcher is not configured.
func Publish(event Event) {
	if GlobalDispatcher != nil {
		GlobalDispatcher.Publish(event)
	}
}
