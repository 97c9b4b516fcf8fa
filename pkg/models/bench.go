package models

import "time"

// RequestRecord captures one benchmark request. It is immutable once completed.
type RequestRecord struct {
	Seq         int       `json:"seq"`
	Question    string    `json:"question"`
	Repeat      bool      `json:"repeat"`
	IssuedAt    time.Time `json:"issued_at"`
	CompletedAt time.Time `json:"completed_at"`
	Outcome     Outcome   `json:"outcome,omitempty"`
	Err         string    `json:"error,omitempty"`
}

// Latency is completed_at - issued_at.
func (r RequestRecord) Latency() time.Duration {
	return r.CompletedAt.Sub(r.IssuedAt)
}

// Failed reports whether the request returned an error instead of an answer.
func (r RequestRecord) Failed() bool {
	return r.Err != ""
}

// RunConfig is the configuration echoed in a report.
type RunConfig struct {
	TargetRate  float64       `json:"target_rate"`
	Duration    time.Duration `json:"duration"`
	Warmup      time.Duration `json:"warmup"`
	RepeatRatio float64       `json:"repeat_ratio"`
	MaxInFlight int           `json:"max_in_flight"`
	TargetP95   time.Duration `json:"target_p95"`
	Seed        uint64        `json:"seed"`
}

// Latencies holds the latency distribution of the post-warmup window.
type Latencies struct {
	P50  time.Duration `json:"p50"`
	P95  time.Duration `json:"p95"`
	P99  time.Duration `json:"p99"`
	Mean time.Duration `json:"mean"`
	Max  time.Duration `json:"max"`
}

// Report is the outcome of one benchmark run.
type Report struct {
	Config    RunConfig     `json:"config"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`

	Issued    int `json:"issued"`
	Completed int `json:"completed"`
	Dropped   int `json:"dropped"`
	Abandoned int `json:"abandoned"`
	Errors    int `json:"errors"`

	WarmupExcluded int `json:"warmup_excluded"`
	Samples        int `json:"samples"`
	// Empty is set when the post-warmup window holds no successful request;
	// Latencies is then left zero.
	Empty     bool      `json:"empty"`
	Latencies Latencies `json:"latencies"`

	HitRate        float64 `json:"hit_rate"`
	RepeatFraction float64 `json:"repeat_fraction"`

	AchievedRate   float64       `json:"achieved_rate"`
	LateIssues     int           `json:"late_issues"`
	MaxScheduleLag time.Duration `json:"max_schedule_lag"`

	TargetMet      bool     `json:"target_met"`
	InFlightPolicy string   `json:"in_flight_policy"`
	Degraded       []string `json:"degraded,omitempty"`
}

// RunSummary is the persisted digest of a report.
type RunSummary struct {
	ID           string        `json:"id"`
	Label        string        `json:"label"`
	CacheEnabled bool          `json:"cache_enabled"`
	TargetRate   float64       `json:"target_rate"`
	Duration     time.Duration `json:"duration"`
	Warmup       time.Duration `json:"warmup"`
	RepeatRatio  float64       `json:"repeat_ratio"`
	Samples      int           `json:"samples"`
	P50          time.Duration `json:"p50"`
	P95          time.Duration `json:"p95"`
	P99          time.Duration `json:"p99"`
	HitRate      float64       `json:"hit_rate"`
	AchievedRate float64       `json:"achieved_rate"`
	TargetMet    bool          `json:"target_met"`
	CreatedAt    time.Time     `json:"created_at"`
}
