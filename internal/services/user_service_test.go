package services

import "testing"

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT(42, "alice")
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}

	if uid, ok := claims["user_id"].(float64); !ok || int(uid) != 42 {
		t.Errorf("user_id claim = %v, want 42", claims["user_id"])
	}
	if claims["username"] != "alice" {
		t.Errorf("username claim = %v, want alice", claims["username"])
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	if _, err := ValidateToken("not-a-token"); err == nil {
		t.Fatal("ValidateToken accepted garbage")
	}
}

func TestValidateTokenRejectsTampered(t *testing.T) {
	token, err := GenerateJWT(42, "alice")
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	tampered := token[:len(token)-2] + "xx"
	if _, err := ValidateToken(tampered); err == nil {
		t.Fatal("ValidateToken accepted a tampered signature")
	}
}
