package model

import "errors"

// ErrInvariantViolation is returned when a ConsumerRecord holds an impossible field combination.
var ErrInvariantViolation = errors.New("consumer record invariant violated")

// ErrConsumerNotFound is returned by stores when no record exists for a consumer.
var ErrConsumerNotFound = errors.New("consumer not found")
