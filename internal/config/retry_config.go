package config

import (
	"time"

	"github.com/fairyhunter13/mainalyze/internal/domain"
)

// FailWritePolicy bounds retries when recording a job as failed.
func (c Config) FailWritePolicy() domain.RetryPolicy {
	p := domain.DefaultRetryPolicy()
	if c.FailWriteAttempts > 0 {
		p.MaxAttempts = c.FailWriteAttempts
	}
	if c.IsTest() {
		p.InitialDelay = time.Millisecond
		p.MaxDelay = 5 * time.Millisecond
	}
	return p
}
