package qr

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

// TestEncodePayload tests the EPC069-12 line layout
func TestEncodePayload(t *testing.T) {
	payload := encodePayload("Netflix", "DE89370400440532013000", decimal.RequireFromString("12.5"), "eur", "March invoice")
	lines := strings.Split(payload, "\n")

	if len(lines) != 12 {
		t.Fatalf("payload has %d lines, want 12", len(lines))
	}
	if lines[0] != "BCD" || lines[1] != "002" || lines[2] != "1" || lines[3] != "SCT" {
		t.Errorf("header = %v, want BCD/002/1/SCT", lines[:4])
	}
	if lines[5] != "Netflix" {
		t.Errorf("name = %q", lines[5])
	}
	if lines[6] != "DE89370400440532013000" {
		t.Errorf("iban = %q", lines[6])
	}
	if lines[7] != "EUR12.50" {
		t.Errorf("amount = %q, want EUR12.50", lines[7])
	}
	if lines[10] != "March invoice" {
		t.Errorf("remittance = %q", lines[10])
	}
}

// TestPaymentQR tests PNG output and input handling
func TestPaymentQR(t *testing.T) {
	t.Run("produces a PNG", func(t *testing.T) {
		png, err := PaymentQR("Netflix", "DE89 3704 0044 0532 0130 00", decimal.NewFromInt(3990), "HUF", "")
		if err != nil {
			t.Fatalf("PaymentQR() error = %v", err)
		}
		if !bytes.HasPrefix(png, []byte("\x89PNG")) {
			t.Error("output is not a PNG")
		}
	})

	t.Run("empty IBAN rejected", func(t *testing.T) {
		_, err := PaymentQR("Netflix", "   ", decimal.NewFromInt(100), "HUF", "")
		if !errors.Is(err, ErrIBANRequired) {
			t.Errorf("error = %v, want ErrIBANRequired", err)
		}
	})

	t.Run("reference falls back to name", func(t *testing.T) {
		payload := encodePayload("Rent", "HU42117730161111101800000000", decimal.NewFromInt(150000), "HUF", "Rent")
		if !strings.Contains(payload, "\nRent\n") {
			t.Errorf("payload missing remittance fallback: %q", payload)
		}
	})
}
