package mutation

import (
	"context"
	"strings"

	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
	"github.com/MarcoPoloResearchLab/unipilot/internal/invalidation"
)

func (c *Coordinator) notes() entityKind[entities.Note] {
	return entityKind[entities.Note]{
		kind:    entities.KindNote,
		table:   c.cache.Notes,
		service: c.services.Notes,
		withID: func(note entities.Note, id int64) entities.Note {
			note.ID = id
			return note
		},
	}
}

func (c *Coordinator) CreateNote(ctx context.Context, note entities.Note) *Handle[entities.Note] {
	if strings.TrimSpace(note.Title) == "" {
		return failed(c, entities.KindNote, OpCreate, note, 0, ErrInvalidEntity)
	}
	return create(ctx, c, c.notes(), note)
}

func (c *Coordinator) UpdateNote(ctx context.Context, note entities.Note, patch entities.NotePatch) *Handle[entities.Note] {
	return update[entities.Note](ctx, c, c.notes(), lookup(c.cache.Notes, note), patch)
}

func (c *Coordinator) DeleteNote(ctx context.Context, note entities.Note) *Handle[entities.Note] {
	return remove(ctx, c, c.notes(), note, invalidation.Ref{ID: note.ID}, invalidation.Scope{})
}

// AddNoteVideos appends videos to the note's embedded list.
func (c *Coordinator) AddNoteVideos(ctx context.Context, note entities.Note, videos ...entities.Video) *Handle[entities.Note] {
	current := lookup(c.cache.Notes, note)
	merged := append(current.VideoList(), videos...)
	return c.UpdateNote(ctx, current, entities.SetNoteVideos{Videos: merged})
}
