// Package campaign models the encrypted survey content and the public
// seed values anchored on the ledger. Seeds are not secret by themselves:
// the campaign seed is visible to everyone and the response seed only
// yields the password to the participant whose key sealed it.
package campaign

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/mr-tron/base58/base58"

	"veilpoll/go-client/internal/contentcrypt"
)

var ErrInvalidSeed = errors.New("invalid campaign seed")

// SeedSize is the width of the public random seed values.
const SeedSize = 32

// Seed is a public 256-bit random value persisted on the ledger.
type Seed [SeedSize]byte

// NewSeed draws a fresh random seed.
func NewSeed() (Seed, error) {
	var s Seed
	if _, err := rand.Read(s[:]); err != nil {
		return Seed{}, err
	}
	return s, nil
}

// ParseSeed decodes the base58 ledger form.
func ParseSeed(text string) (Seed, error) {
	raw, err := base58.Decode(text)
	if err != nil || len(raw) != SeedSize {
		return Seed{}, ErrInvalidSeed
	}
	var s Seed
	copy(s[:], raw)
	return s, nil
}

func (s Seed) String() string {
	return base58.Encode(s[:])
}

// ResponseSeed is the public escrow record for one participant: the shared
// campaign password sealed under that participant's personal key.
type ResponseSeed struct {
	Blob contentcrypt.Blob `json:"blob"`
}

// Campaign is the plaintext survey composite.
type Campaign struct {
	Title       string
	Description string
	Questions   []Question
}

type Question struct {
	Text    string
	Options []string
}

// Response is one participant's plaintext answers.
type Response struct {
	Answers []string
}

// Encrypted mirrors Campaign field-for-field; every blob carries its own
// salt and IV.
type Encrypted struct {
	Title       contentcrypt.Blob   `json:"title"`
	Description contentcrypt.Blob   `json:"description"`
	Questions   []EncryptedQuestion `json:"questions"`
}

type EncryptedQuestion struct {
	Text    contentcrypt.Blob   `json:"text"`
	Options []contentcrypt.Blob `json:"options"`
}

// EncryptedResponse mirrors Response per answer.
type EncryptedResponse struct {
	Answers []contentcrypt.Blob `json:"answers"`
}

// EncryptCampaign seals every field of the composite independently.
func EncryptCampaign(c Campaign, password string) (Encrypted, error) {
	title, err := contentcrypt.Encrypt([]byte(c.Title), password)
	if err != nil {
		return Encrypted{}, fmt.Errorf("encrypt title: %w", err)
	}
	description, err := contentcrypt.Encrypt([]byte(c.Description), password)
	if err != nil {
		return Encrypted{}, fmt.Errorf("encrypt description: %w", err)
	}
	out := Encrypted{Title: title, Description: description}
	for i, q := range c.Questions {
		text, err := contentcrypt.Encrypt([]byte(q.Text), password)
		if err != nil {
			return Encrypted{}, fmt.Errorf("encrypt question %d: %w", i, err)
		}
		eq := EncryptedQuestion{Text: text}
		for j, opt := range q.Options {
			sealed, err := contentcrypt.Encrypt([]byte(opt), password)
			if err != nil {
				return Encrypted{}, fmt.Errorf("encrypt question %d option %d: %w", i, j, err)
			}
			eq.Options = append(eq.Options, sealed)
		}
		out.Questions = append(out.Questions, eq)
	}
	return out, nil
}

// DecryptCampaign opens the composite. All-or-nothing: one failing field
// fails the whole campaign and nothing partial is returned.
func DecryptCampaign(e Encrypted, password string) (Campaign, error) {
	title, err := contentcrypt.Decrypt(e.Title, password)
	if err != nil {
		return Campaign{}, fmt.Errorf("decrypt title: %w", err)
	}
	description, err := contentcrypt.Decrypt(e.Description, password)
	if err != nil {
		return Campaign{}, fmt.Errorf("decrypt description: %w", err)
	}
	out := Campaign{Title: string(title), Description: string(description)}
	for i, q := range e.Questions {
		text, err := contentcrypt.Decrypt(q.Text, password)
		if err != nil {
			return Campaign{}, fmt.Errorf("decrypt question %d: %w", i, err)
		}
		question := Question{Text: string(text)}
		for j, sealed := range q.Options {
			opt, err := contentcrypt.Decrypt(sealed, password)
			if err != nil {
				return Campaign{}, fmt.Errorf("decrypt question %d option %d: %w", i, j, err)
			}
			question.Options = append(question.Options, string(opt))
		}
		out.Questions = append(out.Questions, question)
	}
	return out, nil
}

// EncryptResponse seals a participant's answers per answer.
func EncryptResponse(r Response, password string) (EncryptedResponse, error) {
	var out EncryptedResponse
	for i, answer := range r.Answers {
		sealed, err := contentcrypt.Encrypt([]byte(answer), password)
		if err != nil {
			return EncryptedResponse{}, fmt.Errorf("encrypt answer %d: %w", i, err)
		}
		out.Answers = append(out.Answers, sealed)
	}
	return out, nil
}

// DecryptResponse opens the answers, all-or-nothing.
func DecryptResponse(e EncryptedResponse, password string) (Response, error) {
	var out Response
	for i, sealed := range e.Answers {
		answer, err := contentcrypt.Decrypt(sealed, password)
		if err != nil {
			return Response{}, fmt.Errorf("decrypt answer %d: %w", i, err)
		}
		out.Answers = append(out.Answers, string(answer))
	}
	return out, nil
}
