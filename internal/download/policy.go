package download

import (
	"context"
	"fmt"

	"daybook/internal/domain"
)

// Tier is the class of device permission a download needs.
type Tier string

const (
	TierMedia   Tier = "media"
	TierStorage Tier = "storage"
)

// PermissionTier picks the media permission on API level 33 and newer and
// the legacy storage permission below that.
func PermissionTier(apiLevel int) Tier {
	if apiLevel >= 33 {
		return TierMedia
	}
	return TierStorage
}

// Permissions grants or refuses device access before any file I/O.
type Permissions interface {
	Request(ctx context.Context, tier Tier) (bool, error)
}

type AllowAll struct{}

func (AllowAll) Request(context.Context, Tier) (bool, error) { return true, nil }

type DenyAll struct{}

func (DenyAll) Request(context.Context, Tier) (bool, error) { return false, nil }

// PermissionsFor maps the configured policy name to an implementation.
func PermissionsFor(policy string) (Permissions, error) {
	switch policy {
	case "", "allow":
		return AllowAll{}, nil
	case "deny":
		return DenyAll{}, nil
	}
	return nil, fmt.Errorf("unknown permission policy %q", policy)
}

// Resolution is the answer to a collision prompt.
type Resolution int

const (
	Cancel Resolution = iota
	Replace
)

func (r Resolution) String() string {
	if r == Replace {
		return "replace"
	}
	return "cancel"
}

func ParseResolution(s string) (Resolution, error) {
	switch s {
	case "", "cancel":
		return Cancel, nil
	case "replace":
		return Replace, nil
	}
	return Cancel, fmt.Errorf("unknown collision policy %q (cancel, replace)", s)
}

// Resolver decides what to do when the local file already exists.
type Resolver interface {
	Resolve(ctx context.Context, v domain.Video) (Resolution, error)
}

// StaticResolver always gives the same answer.
type StaticResolver Resolution

func (r StaticResolver) Resolve(context.Context, domain.Video) (Resolution, error) {
	return Resolution(r), nil
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, v domain.Video) (Resolution, error)

func (f ResolverFunc) Resolve(ctx context.Context, v domain.Video) (Resolution, error) {
	return f(ctx, v)
}
