package dialqueue

import (
	"errors"

	"github.com/acme/autodialer/internal/domain"
)

// ErrEmptyQueue indicates there is nothing left to dial.
var ErrEmptyQueue = errors.New("dial queue: empty")

// Queue is an ordered collection of pending phone numbers. Insertion order
// is preserved and duplicates are permitted; uniqueness, when wanted, is the
// caller's policy. The queue does no locking of its own; the sequencer
// serializes all access.
type Queue struct {
	numbers []domain.PhoneNumber
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{}
}

// Append inserts a number at the tail.
func (q *Queue) Append(number domain.PhoneNumber) {
	q.numbers = append(q.numbers, number)
}

// Remove deletes the first occurrence of number and reports whether anything
// was removed. Removing an absent number is a no-op, not an error.
func (q *Queue) Remove(number domain.PhoneNumber) bool {
	for i, n := range q.numbers {
		if n == number {
			q.numbers = append(q.numbers[:i], q.numbers[i+1:]...)
			return true
		}
	}
	return false
}

// Clear empties the queue.
func (q *Queue) Clear() {
	q.numbers = q.numbers[:0]
}

// PopFront removes and returns the head element.
func (q *Queue) PopFront() (domain.PhoneNumber, error) {
	if len(q.numbers) == 0 {
		return "", ErrEmptyQueue
	}
	head := q.numbers[0]
	q.numbers = q.numbers[1:]
	return head, nil
}

// IsEmpty reports whether the queue holds no numbers.
func (q *Queue) IsEmpty() bool {
	return len(q.numbers) == 0
}

// Len returns the number of pending entries.
func (q *Queue) Len() int {
	return len(q.numbers)
}

// Snapshot returns an ordered copy safe to hand to observers.
func (q *Queue) Snapshot() []domain.PhoneNumber {
	out := make([]domain.PhoneNumber, len(q.numbers))
	copy(out, q.numbers)
	return out
}
