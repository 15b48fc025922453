package invalidationqueue

import (
	"fmt"
	"reflect"
)

// UnknownEntryError reports a store/get/clear against an entry name the cache
// was never configured with. This is a programming error; fix the entry
// declarations rather than retrying.
type UnknownEntryError struct {
	Component string
	Name      string
}

func (e *UnknownEntryError) Error() string {
	return fmt.Sprintf("cache %q is not configured to store entry %q", e.Component, e.Name)
}

// TypeMismatchError reports a stored value whose runtime type does not match
// the entry's declared type. Nothing is written when this is returned.
type TypeMismatchError struct {
	Name string
	Want reflect.Type
	Got  reflect.Type
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("entry %q expects values of type %v, got %v", e.Name, e.Want, e.Got)
}

// EncodeError reports a value that could not be serialized for storage.
type EncodeError struct {
	Name string
	Err  error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("entry %q could not be encoded: %v", e.Name, e.Err)
}
func (e *EncodeError) Unwrap() error { return e.Err }

// DecodeError reports stored bytes that do not decode into the entry's
// declared type. The stored value is unusable; callers should treat the
// entry as absent after clearing it.
type DecodeError struct {
	Name string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("entry %q could not be decoded: %v", e.Name, e.Err)
}
func (e *DecodeError) Unwrap() error { return e.Err }

// RefreshUnavailableError reports an entry declaring a refresh source id that
// the refresh registry cannot resolve.
type RefreshUnavailableError struct {
	Name      string
	RefreshID string
}

func (e *RefreshUnavailableError) Error() string {
	return fmt.Sprintf("entry %q: no refresh source registered under %q", e.Name, e.RefreshID)
}

// RefreshFailedError wraps an error raised by an entry's refresh source.
type RefreshFailedError struct {
	Name      string
	RefreshID string
	Err       error
}

func (e *RefreshFailedError) Error() string {
	return fmt.Sprintf("entry %q: refresh source %q failed: %v", e.Name, e.RefreshID, e.Err)
}
func (e *RefreshFailedError) Unwrap() error { return e.Err }

// RefreshTypeMismatchError reports a refresh source returning a value of a
// type other than the entry's declared type.
type RefreshTypeMismatchError struct {
	Name      string
	RefreshID string
	Want      reflect.Type
	Got       reflect.Type
}

func (e *RefreshTypeMismatchError) Error() string {
	return fmt.Sprintf("entry %q: refresh source %q returned %v, want %v", e.Name, e.RefreshID, e.Got, e.Want)
}

// CacheWriteFailedError reports that a freshly refreshed value could not be
// written back to storage. The value itself is valid and IS returned
// alongside this error; only the caching of it failed, so callers may log
// and use the value anyway.
type CacheWriteFailedError struct {
	Name string
	Err  error
}

func (e *CacheWriteFailedError) Error() string {
	return fmt.Sprintf("entry %q: refreshed value could not be cached: %v", e.Name, e.Err)
}
func (e *CacheWriteFailedError) Unwrap() error { return e.Err }
