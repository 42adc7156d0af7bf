package station

import "fmt"

// Config defines engine parameters loaded from configuration.
type Config struct {
	// WaitingAreaCapacity bounds the total number of requests in the
	// waiting area across both tiers.
	WaitingAreaCapacity int `json:"waiting_area_capacity"`
	// PileQueueDepth is the per-pile queue capacity (charging + waiting).
	PileQueueDepth int `json:"pile_queue_depth"`
	// RequeueThresholdKWh is the minimum remaining energy worth re-queuing
	// after a fault interrupts a session.
	RequeueThresholdKWh float64 `json:"requeue_threshold_kwh"`
	// SchedulerIntervalSeconds is the period of the scheduling pass.
	SchedulerIntervalSeconds int `json:"scheduler_interval_seconds"`
	// MonitorIntervalSeconds is the period of the completion monitor.
	MonitorIntervalSeconds int `json:"monitor_interval_seconds"`
	// DefaultStrategy names the strategy active at startup.
	DefaultStrategy string `json:"default_strategy"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.WaitingAreaCapacity == 0 {
		c.WaitingAreaCapacity = 6
	}
	if c.PileQueueDepth == 0 {
		c.PileQueueDepth = 2
	}
	if c.RequeueThresholdKWh == 0 {
		c.RequeueThresholdKWh = 0.1
	}
	if c.SchedulerIntervalSeconds == 0 {
		c.SchedulerIntervalSeconds = 10
	}
	if c.MonitorIntervalSeconds == 0 {
		c.MonitorIntervalSeconds = 5
	}
	if c.DefaultStrategy == "" {
		c.DefaultStrategy = string(StrategyIndividualShortest)
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.WaitingAreaCapacity <= 0 {
		return fmt.Errorf("waiting_area_capacity must be positive")
	}
	if c.PileQueueDepth <= 0 {
		return fmt.Errorf("pile_queue_depth must be positive")
	}
	if c.SchedulerIntervalSeconds <= 0 || c.MonitorIntervalSeconds <= 0 {
		return fmt.Errorf("intervals must be positive")
	}
	if _, err := ParseStrategy(c.DefaultStrategy); err != nil {
		return err
	}
	return nil
}
