package types

import (
	"errors"
	"fmt"
)

type FilteredError struct {
	FilterName string
	Reason     string
	Details    map[string]interface{}
}

func (e *FilteredError) Error() string {
	return fmt.Sprintf("filtered by %s: %s", e.FilterName, e.Reason)
}

func IsFiltered(err error) bool {
	var fe *FilteredError
	return errors.As(err, &fe)
}

func NewFilteredError(filterName, reason string) *FilteredError {
	return &FilteredError{
		FilterName: filterName,
		Reason:     reason,
		Details:    make(map[string]interface{}),
	}
}

func (e *FilteredError) WithDetail(key string, value interface{}) *FilteredError {
	e.Details[key] = value
	return e
}

type FailureKind string

const (
	Transient FailureKind = "transient"
	Permanent FailureKind = "permanent"
)

// ParseFailureKind maps anything other than "permanent" to Transient.
func ParseFailureKind(s string) FailureKind {
	if s == string(Permanent) {
		return Permanent
	}
	return Transient
}

type FetchError struct {
	Kind    FailureKind
	Source  string
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Source != "" {
		return fmt.Sprintf("%s fetch error for %s: %s", e.Kind, e.Source, msg)
	}
	return fmt.Sprintf("%s fetch error: %s", e.Kind, msg)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func NewTransientError(source string, err error) *FetchError {
	return &FetchError{Kind: Transient, Source: source, Err: err}
}

func NewPermanentError(source, message string) *FetchError {
	return &FetchError{Kind: Permanent, Source: source, Message: message}
}

func IsPermanent(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == Permanent
}

type DeliveryError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("delivery failed: %v", e.Err)
	}
	return fmt.Sprintf("delivery failed: status %d: %s", e.StatusCode, e.Body)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

func IsDeliveryError(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de)
}

type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
