package domain

// JobMessage wraps a job delivered from the work queue together with its
// lease callbacks. Exactly one of Ack or Nack must be called once the job
// settles; an unacknowledged message is redelivered when the consumer dies.
type JobMessage struct {
	Job *Job

	// Attempt is how many deliveries preceded this one (0 on the first).
	Attempt int

	Ack  func() error
	Nack func(requeue bool) error
}
