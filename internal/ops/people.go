package ops

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hpungsan/rutina/internal/db"
	"github.com/hpungsan/rutina/internal/errors"
)

// Relation is how a person relates to the cared-for individual.
type Relation string

var relations = []Relation{
	"dad", "mom", "brother", "sister", "grandpa", "grandma",
	"uncle", "aunt", "cousin", "caregiver", "teacher", "other",
}

const maxAudioTextChars = 280

// PersonCard is a familiar face: a name, a photo and a short recorded
// greeting.
type PersonCard struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Relation    Relation  `json:"relation"`
	PhotoRef    string    `json:"photoRef,omitempty"`
	AudioRef    string    `json:"audioRef,omitempty"`
	AudioText   string    `json:"audioText,omitempty"`
	CreatedAt   time.Time `json:"createdAtISO"`
}

// AddPersonInput contains parameters for AddPerson. PhotoRef and AudioRef
// must point at media already stored with PutMedia.
type AddPersonInput struct {
	DisplayName string   `json:"displayName"`
	Relation    Relation `json:"relation,omitempty"`
	PhotoRef    string   `json:"photoRef,omitempty"`
	AudioRef    string   `json:"audioRef,omitempty"`
	AudioText   string   `json:"audioText,omitempty"`
}

// PeopleOutput lists people in creation order.
type PeopleOutput struct {
	People []PersonCard `json:"people"`
}

// AddPerson validates and stores a person card.
func AddPerson(ctx context.Context, kv db.KV, input AddPersonInput) (*PersonCard, error) {
	fe := map[string]string{}
	name := strings.TrimSpace(input.DisplayName)
	if n := utf8.RuneCountInString(name); n < 1 || n > 60 {
		fe["displayName"] = "must be between 1 and 60 characters"
	}
	relation := input.Relation
	if relation == "" {
		relation = "other"
	}
	if !slices.Contains(relations, relation) {
		fe["relation"] = "must be a known relation"
	}
	audioText := strings.TrimSpace(input.AudioText)
	if utf8.RuneCountInString(audioText) > maxAudioTextChars {
		fe["audioText"] = fmt.Sprintf("must be at most %d characters", maxAudioTextChars)
	}
	if len(fe) > 0 {
		return nil, errors.NewValidation(fe)
	}

	for _, ref := range []string{input.PhotoRef, input.AudioRef} {
		if ref == "" {
			continue
		}
		if _, found, err := kv.Get(ctx, mediaKey(ref)); err != nil {
			return nil, err
		} else if !found {
			return nil, errors.NewNotFound("media", ref)
		}
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	p := PersonCard{
		ID:          id,
		DisplayName: name,
		Relation:    relation,
		PhotoRef:    input.PhotoRef,
		AudioRef:    input.AudioRef,
		AudioText:   audioText,
		CreatedAt:   time.Now().UTC(),
	}

	writeMu.Lock()
	defer writeMu.Unlock()

	list, err := loadPeople(ctx, kv)
	if err != nil {
		return nil, err
	}
	list = append(list, p)
	if err := writeJSON(ctx, kv, keyPeople, list); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPeople returns every person card.
func ListPeople(ctx context.Context, kv db.KV) (*PeopleOutput, error) {
	list, err := loadPeople(ctx, kv)
	if err != nil {
		return nil, err
	}
	return &PeopleOutput{People: list}, nil
}

// DeletePerson removes a person card and its photo and audio media.
func DeletePerson(ctx context.Context, kv db.KV, id string) (*DeleteOutput, error) {
	writeMu.Lock()
	defer writeMu.Unlock()

	list, err := loadPeople(ctx, kv)
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(list, func(p PersonCard) bool { return p.ID == id })
	if idx < 0 {
		return nil, errors.NewNotFound("person", id)
	}
	target := list[idx]
	list = slices.Delete(list, idx, idx+1)

	if err := writeJSON(ctx, kv, keyPeople, list); err != nil {
		return nil, err
	}
	for _, ref := range []string{target.PhotoRef, target.AudioRef} {
		if ref == "" {
			continue
		}
		if err := kv.Delete(ctx, mediaKey(ref)); err != nil {
			return nil, err
		}
	}
	return &DeleteOutput{Deleted: true, ID: id}, nil
}

func loadPeople(ctx context.Context, kv db.KV) ([]PersonCard, error) {
	list := []PersonCard{}
	if _, err := readJSON(ctx, kv, keyPeople, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Media is an uploaded photo, pictogram or audio clip.
type Media struct {
	ContentType string `json:"contentType"`
	Data        []byte `json:"data"`
}

// MediaRef identifies stored media.
type MediaRef struct {
	Ref         string `json:"ref"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
}

// PutMediaInput contains parameters for PutMedia. An empty ContentType is
// sniffed from the data.
type PutMediaInput struct {
	ContentType string
	Data        []byte
	MaxBytes    int64
}

// PutMedia stores an image or audio blob and returns its reference.
func PutMedia(ctx context.Context, kv db.KV, input PutMediaInput) (*MediaRef, error) {
	if len(input.Data) == 0 {
		return nil, errors.NewInvalidRequest("media body is empty")
	}
	if input.MaxBytes > 0 && int64(len(input.Data)) > input.MaxBytes {
		return nil, errors.NewPayloadTooLarge(int(input.MaxBytes), len(input.Data))
	}

	ct := strings.TrimSpace(input.ContentType)
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(input.Data)
	}
	mediaType, _, _ := strings.Cut(ct, ";")
	if !strings.HasPrefix(mediaType, "image/") && !strings.HasPrefix(mediaType, "audio/") {
		return nil, errors.NewValidation(map[string]string{"contentType": "must be an image or audio type"})
	}

	ref, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := writeJSON(ctx, kv, mediaKey(ref), Media{ContentType: ct, Data: input.Data}); err != nil {
		return nil, err
	}
	return &MediaRef{Ref: ref, ContentType: ct, Size: len(input.Data)}, nil
}

// GetMedia returns stored media by reference.
func GetMedia(ctx context.Context, kv db.KV, ref string) (*Media, error) {
	var m Media
	found, err := readJSON(ctx, kv, mediaKey(ref), &m)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.NewNotFound("media", ref)
	}
	return &m, nil
}
