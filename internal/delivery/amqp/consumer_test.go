package amqp

import (
	"testing"

	amqplib "github.com/rabbitmq/amqp091-go"
)

func TestAttemptFromHeaders(t *testing.T) {
	tests := []struct {
		name    string
		headers amqplib.Table
		want    int
	}{
		{
			name:    "first delivery has no x-death",
			headers: amqplib.Table{},
			want:    0,
		},
		{
			name:    "nil headers",
			headers: nil,
			want:    0,
		},
		{
			name: "one retry cycle",
			headers: amqplib.Table{
				"x-death": []interface{}{
					amqplib.Table{"queue": "localization_jobs", "count": int64(1)},
					amqplib.Table{"queue": "localization_jobs.retry", "count": int64(1)},
				},
			},
			want: 1,
		},
		{
			name: "three retry cycles",
			headers: amqplib.Table{
				"x-death": []interface{}{
					amqplib.Table{"queue": "localization_jobs.retry", "count": int64(3)},
					amqplib.Table{"queue": "localization_jobs", "count": int64(3)},
				},
			},
			want: 3,
		},
		{
			name: "ignores other queues",
			headers: amqplib.Table{
				"x-death": []interface{}{
					amqplib.Table{"queue": "some_other_queue", "count": int64(7)},
				},
			},
			want: 0,
		},
		{
			name: "malformed x-death entry",
			headers: amqplib.Table{
				"x-death": []interface{}{"garbage"},
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := attemptFromHeaders(tt.headers); got != tt.want {
				t.Errorf("attemptFromHeaders() = %d, want %d", got, tt.want)
			}
		})
	}
}
