package collecting

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"colmet/pkg/counters"
	"colmet/pkg/metrics"
)

// Taskstats queries per-task accounting over the generic netlink TASKSTATS
// family. It needs CAP_NET_ADMIN on most kernels.
type Taskstats struct {
	mu     sync.Mutex
	conn   *genetlink.Conn
	family genetlink.Family
}

func NewTaskstats() (*Taskstats, error) {
	conn, err := genetlink.Dial(nil)
	if err != nil {
		return nil, fmt.Errorf("taskstats: dial: %w", err)
	}
	family, err := conn.GetFamily(unix.TASKSTATS_GENL_NAME)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("taskstats: resolve family: %w", err)
	}
	log.Debugf("taskstats: generic netlink family %d version %d", family.ID, family.Version)
	return &Taskstats{conn: conn, family: family}, nil
}

func (t *Taskstats) Name() string             { return "taskstats" }
func (t *Taskstats) Schema() *counters.Schema { return metrics.Taskstats }
func (t *Taskstats) Level() Level             { return TaskLevel }

func (t *Taskstats) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

func (t *Taskstats) Fetch(h Handle) *counters.Unpacked {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}

	ae := netlink.NewAttributeEncoder()
	ae.Uint32(unix.TASKSTATS_CMD_ATTR_PID, uint32(h))
	data, err := ae.Encode()
	if err != nil {
		log.Debugf("taskstats: tid %d: %v", h, err)
		return nil
	}

	if err := t.conn.SetReadDeadline(time.Now().Add(taskstatsTimeout)); err != nil {
		log.Debugf("taskstats: deadline: %v", err)
	}
	msgs, err := t.conn.Execute(genetlink.Message{
		Header: genetlink.Header{Command: unix.TASKSTATS_CMD_GET, Version: unix.TASKSTATS_GENL_VERSION},
		Data:   data,
	}, t.family.ID, netlink.Request)
	if err != nil {
		// ESRCH: the task exited between listing and sampling
		log.Debugf("taskstats: tid %d: %v", h, err)
		return nil
	}

	for _, m := range msgs {
		payload, err := statsPayload(m.Data)
		if err != nil {
			log.Debugf("taskstats: tid %d: %v", h, err)
			continue
		}
		if payload != nil {
			return decodeTaskstats(payload)
		}
	}
	return nil
}

// statsPayload digs the struct taskstats out of a reply's
// TASKSTATS_TYPE_AGGR_PID nest. It returns nil when the reply has none.
func statsPayload(b []byte) ([]byte, error) {
	ad, err := netlink.NewAttributeDecoder(b)
	if err != nil {
		return nil, err
	}
	var payload []byte
	for ad.Next() {
		if ad.Type() != unix.TASKSTATS_TYPE_AGGR_PID {
			continue
		}
		ad.Nested(func(nad *netlink.AttributeDecoder) error {
			for nad.Next() {
				if nad.Type() == unix.TASKSTATS_TYPE_STATS {
					payload = nad.Bytes()
				}
			}
			return nil
		})
	}
	return payload, ad.Err()
}

// decodeTaskstats reads the kernel struct taskstats, which the kernel lays
// out in host byte order. Counters beyond the end of a short payload (older
// kernels) are left missing.
func decodeTaskstats(payload []byte) *counters.Unpacked {
	r := counters.Empty(metrics.Taskstats)
	for _, c := range metrics.Taskstats.Counters() {
		off := metrics.TaskstatsOffsets[c.Name]
		w := c.Type.Width()
		if off+w > len(payload) {
			continue
		}
		var v uint64
		switch w {
		case 4:
			v = uint64(binary.NativeEndian.Uint32(payload[off:]))
		default:
			v = binary.NativeEndian.Uint64(payload[off:])
		}
		if err := r.Set(c.Name, v); err != nil {
			log.Debugf("taskstats: %s: %v", c.Name, err)
		}
	}
	return r
}
