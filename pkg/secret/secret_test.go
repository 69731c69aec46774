/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package secret_test

import (
	"testing"
	"time"

	"github.com/fernet/fernet-go"

	"github.com/eiffel-community/etos-environment-provider/pkg/secret"
)

func generateKey(t *testing.T) string {
	t.Helper()
	var k fernet.Key
	if err := k.Generate(); err != nil {
		t.Fatalf("generating key: %v", err)
	}
	return k.Encode()
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := secret.New(generateKey(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	token, err := enc.Encrypt("super-secret-token")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if token == "super-secret-token" {
		t.Fatal("expected ciphertext to differ from plaintext")
	}

	got, err := enc.Decrypt(token, time.Hour)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != "super-secret-token" {
		t.Fatalf("expected round-tripped value, got %q", got)
	}
}

func TestNewRejectsEmptyKey(t *testing.T) {
	if _, err := secret.New(""); err == nil {
		t.Fatal("expected New(\"\") to fail")
	}
}

func TestEncryptCredentialsPassesThroughWithoutEncryptor(t *testing.T) {
	creds := map[string]string{"token": "plain-value"}
	out, err := secret.EncryptCredentials(nil, creds)
	if err != nil {
		t.Fatalf("EncryptCredentials: %v", err)
	}
	if out["token"] != "plain-value" {
		t.Fatalf("expected passthrough, got %q", out["token"])
	}
}

func TestEncryptCredentialsEncryptsEachValue(t *testing.T) {
	enc, err := secret.New(generateKey(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	creds := map[string]string{"token": "plain-value"}
	out, err := secret.EncryptCredentials(enc, creds)
	if err != nil {
		t.Fatalf("EncryptCredentials: %v", err)
	}
	if out["token"] == "plain-value" {
		t.Fatal("expected the credential to be encrypted")
	}
	decrypted, err := enc.Decrypt(out["token"], time.Hour)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if decrypted != "plain-value" {
		t.Fatalf("expected decrypted value to round-trip, got %q", decrypted)
	}
}
