package auth

import (
	"context"
	"log/slog"
)

const defaultPrompt = "Authenticate to access your digital wallet"

// Platform is the device's local-authentication capability. Bindings to a
// concrete OS API live outside this module.
type Platform interface {
	HasHardware(ctx context.Context) (bool, error)
	IsEnrolled(ctx context.Context) (bool, error)
	// Prompt asks the holder to authenticate. ok is false when the holder
	// cancels or the sensor rejects them; reason then describes why.
	Prompt(ctx context.Context, message string) (ok bool, reason string, err error)
}

// PlatformBiometric authenticates with the device's biometric sensor.
type PlatformBiometric struct {
	platform Platform
	logger   *slog.Logger
}

// NewPlatformBiometric wraps a device platform.
func NewPlatformBiometric(platform Platform, logger *slog.Logger) *PlatformBiometric {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlatformBiometric{platform: platform, logger: logger}
}

func (b *PlatformBiometric) Method() Method { return MethodBiometric }

// Available requires both sensor hardware and an enrolled biometric.
func (b *PlatformBiometric) Available(ctx context.Context) bool {
	return b.unavailableReason(ctx) == ""
}

func (b *PlatformBiometric) unavailableReason(ctx context.Context) string {
	hasHardware, err := b.platform.HasHardware(ctx)
	if err != nil {
		b.logger.WarnContext(ctx, "biometric hardware probe failed", "error", err)
		return ReasonUnavailable
	}
	if !hasHardware {
		return ReasonUnavailable
	}
	enrolled, err := b.platform.IsEnrolled(ctx)
	if err != nil {
		b.logger.WarnContext(ctx, "biometric enrollment probe failed", "error", err)
		return ReasonNotEnrolled
	}
	if !enrolled {
		return ReasonNotEnrolled
	}
	return ""
}

func (b *PlatformBiometric) Authenticate(ctx context.Context, challenge Challenge) (Result, error) {
	if reason := b.unavailableReason(ctx); reason != "" {
		return failed(MethodBiometric, reason), nil
	}
	prompt := challenge.Prompt
	if prompt == "" {
		prompt = defaultPrompt
	}
	ok, reason, err := b.platform.Prompt(ctx, prompt)
	if err != nil {
		b.logger.ErrorContext(ctx, "biometric prompt failed", "error", err)
		return failed(MethodBiometric, ReasonPlatformFail), nil
	}
	if !ok {
		if reason == "" {
			reason = ReasonCancelled
		}
		return failed(MethodBiometric, reason), nil
	}
	return succeeded(MethodBiometric), nil
}

var _ Authenticator = (*PlatformBiometric)(nil)
