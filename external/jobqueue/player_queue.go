package jobqueue

import (
	"context"
	"hash/fnv"
	"strconv"
	"strings"

	crerr "github.com/cockroachdb/errors"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
)

const defaultPlayerQueueName = "player-processor"

type PlayerQueueConfig struct {
	// ProcessorURL is the downstream consumer that receives each batch.
	ProcessorURL string
	QueueName    string
	// Partitions spreads games over ordered queues; a game always maps to the same one.
	Partitions int
}

// PlayerQueue publishes player batches to ordered QStash queues keyed by game.
type PlayerQueue struct {
	publisher    *QStashPublisher
	processorURL string
	queueName    string
	partitions   int
}

func NewPlayerQueue(publisher *QStashPublisher, cfg PlayerQueueConfig) *PlayerQueue {
	name := strings.TrimSpace(cfg.QueueName)
	if name == "" {
		name = defaultPlayerQueueName
	}
	partitions := cfg.Partitions
	if partitions <= 0 {
		partitions = 1
	}
	return &PlayerQueue{
		publisher:    publisher,
		processorURL: strings.TrimSpace(cfg.ProcessorURL),
		queueName:    name,
		partitions:   partitions,
	}
}

var _ game.PlayerQueue = (*PlayerQueue)(nil)

func (q *PlayerQueue) Enqueue(ctx context.Context, msg game.PlayerBatchMessage) error {
	if q.processorURL == "" {
		return crerr.New("player processor queue url is not configured")
	}
	if strings.TrimSpace(msg.GroupID) == "" {
		return crerr.New("player batch group id is required")
	}

	err := q.publisher.publish(ctx, publishRequest{
		targetURL:       q.processorURL,
		queue:           q.QueueFor(msg.GroupID),
		payload:         msg,
		deduplicationID: msg.DeduplicationID,
		forwardHeaders: map[string]string{
			"X-Message-Group-Id": msg.GroupID,
			"X-Batch-Index":      strconv.Itoa(msg.Metadata.BatchIndex),
		},
	})
	if err != nil {
		return crerr.Wrapf(err, "enqueue player batch game=%s batch=%d", msg.GroupID, msg.Metadata.BatchIndex)
	}
	return nil
}

// QueueFor returns the ordered queue that serves groupID.
func (q *PlayerQueue) QueueFor(groupID string) string {
	if q.partitions == 1 {
		return q.queueName
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(groupID))
	return q.queueName + "-" + strconv.Itoa(int(h.Sum32()%uint32(q.partitions)))
}
