package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Jerrylingj/MemoLite/pkg/core"
	"github.com/Jerrylingj/MemoLite/pkg/memory"
	"github.com/Jerrylingj/MemoLite/pkg/writer"
)

// Scenario is a list of writes replayed in order into a client.
//
// The file is YAML; JSON files load as well since JSON is valid YAML.
//
//	writes:
//	  - key: user_job
//	    source: user
//	    content: User is a financial analyst
//	    memory_type: USER_PROFILE
//	    importance: 0.9
//	    confidence: 1.0
//	  - strategy: event
//	    event: task_completed
//	    content: Finished the Q3 report
//	    memory_type: TASK_CONTEXT
type Scenario struct {
	Writes []Write `yaml:"writes" json:"writes"`
}

// Write is one entry of a scenario.
//
// Without a strategy the record is remembered directly under Key with
// Source. With a strategy it goes through the client writer: realtime needs
// a key, event uses Event as the event type and feedback uses Command as the
// user instruction. Batch writes are buffered and flushed at the end of the
// replay.
type Write struct {
	Key        string                 `yaml:"key" json:"key"`
	Source     string                 `yaml:"source" json:"source"`
	Strategy   string                 `yaml:"strategy" json:"strategy"`
	Event      string                 `yaml:"event" json:"event"`
	Command    string                 `yaml:"command" json:"command"`
	Content    string                 `yaml:"content" json:"content"`
	MemoryType string                 `yaml:"memory_type" json:"memory_type"`
	Importance *float64               `yaml:"importance" json:"importance"`
	Confidence *float64               `yaml:"confidence" json:"confidence"`
	Frequency  int                    `yaml:"frequency" json:"frequency"`
	CreatedAt  string                 `yaml:"created_at" json:"created_at"`
	ValidUntil string                 `yaml:"valid_until" json:"valid_until"`
	Metadata   map[string]interface{} `yaml:"metadata" json:"metadata"`
}

var scenarioTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseScenarioTime(s string) (time.Time, error) {
	for _, layout := range scenarioTimeLayouts {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(s), time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	return &sc, nil
}

// Record builds the memory record described by w.
func (w Write) Record() (*memory.Record, error) {
	typ, err := memory.ParseType(w.MemoryType)
	if err != nil {
		return nil, err
	}

	var opts []memory.RecordOption
	if w.Importance != nil {
		opts = append(opts, memory.WithImportance(*w.Importance))
	}
	if w.Confidence != nil {
		opts = append(opts, memory.WithConfidence(*w.Confidence))
	}
	if w.Frequency > 0 {
		opts = append(opts, memory.WithFrequency(w.Frequency))
	}
	if w.CreatedAt != "" {
		t, err := parseScenarioTime(w.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("created_at: %w", err)
		}
		opts = append(opts, memory.WithCreatedAt(t))
	}
	if w.ValidUntil != "" {
		t, err := parseScenarioTime(w.ValidUntil)
		if err != nil {
			return nil, fmt.Errorf("valid_until: %w", err)
		}
		opts = append(opts, memory.WithValidUntil(t))
	}
	if w.Metadata != nil {
		opts = append(opts, memory.WithMetadata(w.Metadata))
	}

	return memory.NewRecord(w.Content, typ, opts...), nil
}

// Replay applies every write in order, then flushes buffered batch writes.
func (sc *Scenario) Replay(ctx context.Context, client *core.Client) error {
	wr := client.Writer()
	for i, w := range sc.Writes {
		rec, err := w.Record()
		if err != nil {
			return fmt.Errorf("write %d: %w", i, err)
		}

		switch writer.Strategy(strings.ToLower(w.Strategy)) {
		case "":
			var source memory.Source
			if source, err = memory.ParseSource(w.Source); err == nil {
				_, err = client.Remember(ctx, w.Key, rec, source)
			}
		case writer.StrategyRealtime:
			err = wr.WriteRealtime(ctx, w.Key, rec)
		case writer.StrategyBatch:
			wr.AddToBatch(rec)
		case writer.StrategyEvent:
			err = wr.WriteOnEvent(ctx, w.Event, rec)
		case writer.StrategyFeedback:
			err = wr.WriteFromFeedback(ctx, w.Command, rec)
		default:
			err = fmt.Errorf("unknown strategy %q", w.Strategy)
		}
		if err != nil {
			return fmt.Errorf("write %d: %w", i, err)
		}
	}

	if _, err := wr.FlushBatch(ctx); err != nil {
		return fmt.Errorf("flush batch: %w", err)
	}
	return nil
}
