package media

import (
	"fmt"
	"slices"
)

// DefaultMaxBytes is the size ceiling applied to both videos and images.
const DefaultMaxBytes int64 = 1 << 30

// Reason explains why a candidate was rejected.
type Reason int

const (
	ReasonEmpty Reason = iota + 1
	ReasonTooLarge
	ReasonUnsupportedType
)

func (r Reason) String() string {
	switch r {
	case ReasonEmpty:
		return "empty"
	case ReasonTooLarge:
		return "too_large"
	case ReasonUnsupportedType:
		return "unsupported_type"
	}
	return "unknown"
}

// Rejection is returned by Validate when a candidate fails the policy.
type Rejection struct {
	Reason Reason
	Kind   Kind
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail != "" {
		return fmt.Sprintf("%s rejected (%s): %s", r.Kind, r.Reason, r.Detail)
	}
	return fmt.Sprintf("%s rejected (%s)", r.Kind, r.Reason)
}

// Policy is the acceptance policy for file candidates.
type Policy struct {
	MaxBytes      int64
	VideoTypes    []string
	ImageTypes    []string
	VerifyContent bool // sniff staged bytes and require an allowed type
}

func DefaultPolicy() Policy {
	return Policy{
		MaxBytes:   DefaultMaxBytes,
		VideoTypes: []string{"video/mp4", "video/webm", "video/quicktime"},
		ImageTypes: []string{"image/jpeg", "image/png"},
	}
}

// Validator gates file candidates before they are accepted into a draft.
type Validator struct {
	policy Policy
}

func NewValidator(policy Policy) *Validator {
	if policy.MaxBytes <= 0 {
		policy.MaxBytes = DefaultMaxBytes
	}
	return &Validator{policy: policy}
}

func (v *Validator) Policy() Policy { return v.policy }

// Validate checks c against the policy for kind. Checks run in a fixed order:
// presence, size, declared type, then (optionally) sniffed content.
func (v *Validator) Validate(c *Candidate, kind Kind) (*Accepted, error) {
	// a zero-byte upload is the same as no file
	if c == nil || c.Size <= 0 {
		return nil, &Rejection{Reason: ReasonEmpty, Kind: kind}
	}

	if c.Size > v.policy.MaxBytes {
		return nil, &Rejection{
			Reason: ReasonTooLarge,
			Kind:   kind,
			Detail: fmt.Sprintf("%d bytes exceeds limit of %d", c.Size, v.policy.MaxBytes),
		}
	}

	allowed := v.allowed(kind)
	declared := normalizeType(c.ContentType)
	if !slices.Contains(allowed, declared) {
		return nil, &Rejection{
			Reason: ReasonUnsupportedType,
			Kind:   kind,
			Detail: fmt.Sprintf("declared type %q not allowed", c.ContentType),
		}
	}

	if v.policy.VerifyContent && c.Path != "" {
		detected, err := DetectFile(c.Path, allowed)
		if err != nil {
			return nil, &Rejection{Reason: ReasonUnsupportedType, Kind: kind, Detail: err.Error()}
		}
		if detected == "" {
			return nil, &Rejection{
				Reason: ReasonUnsupportedType,
				Kind:   kind,
				Detail: fmt.Sprintf("content does not match declared type %q", declared),
			}
		}
	}

	accepted := *c
	accepted.ContentType = declared
	return &Accepted{candidate: accepted, kind: kind}, nil
}

func (v *Validator) allowed(kind Kind) []string {
	if kind == KindImage {
		return v.policy.ImageTypes
	}
	return v.policy.VideoTypes
}
