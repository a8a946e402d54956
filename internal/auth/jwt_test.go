package auth

import "testing"

func TestDeviceTokenRoundTrip(t *testing.T) {
	deviceID := "test-device-123"

	token, err := GenerateDeviceToken(deviceID)
	if err != nil {
		t.Fatalf("GenerateDeviceToken failed: %v", err)
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}

	if claims.DeviceID != deviceID {
		t.Errorf("expected device ID %s, got %s", deviceID, claims.DeviceID)
	}

	if claims.Role != "device" {
		t.Errorf("expected role 'device', got %q", claims.Role)
	}
}

func TestValidateToken_Invalid(t *testing.T) {
	if _, err := ValidateToken("not-a-token"); err == nil {
		t.Error("expected error for malformed token")
	}

	if _, err := ValidateToken(""); err == nil {
		t.Error("expected error for empty token")
	}
}

func TestSecretOverride(t *testing.T) {
	t.Setenv("VOICEWIRE_JWT_SECRET", "override")
	if string(Secret()) != "override" {
		t.Errorf("expected env override, got %q", Secret())
	}

	t.Setenv("VOICEWIRE_JWT_SECRET", "")
	if string(Secret()) != "voicewire-dev-secret" {
		t.Errorf("expected default secret, got %q", Secret())
	}
}
