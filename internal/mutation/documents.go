package mutation

import (
	"context"
	"strings"

	"github.com/MarcoPoloResearchLab/unipilot/internal/cache"
	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
	"github.com/MarcoPoloResearchLab/unipilot/internal/invalidation"
)

func (c *Coordinator) documents() entityKind[entities.Document] {
	return entityKind[entities.Document]{
		kind:    entities.KindDocument,
		table:   c.cache.Documents,
		service: c.services.Documents,
		withID: func(document entities.Document, id int64) entities.Document {
			document.ID = id
			return document
		},
	}
}

// UploadDocument records a new file against an assignment. The size limits
// are checked against what the cache currently holds before anything is
// written.
func (c *Coordinator) UploadDocument(ctx context.Context, assignmentID int64, documentType entities.DocumentType, file entities.FileMeta) *Handle[entities.Document] {
	document := entities.Document{
		AssignmentID: assignmentID,
		Type:         documentType,
		FileName:     file.FileName,
		FileType:     file.FileType,
		FileSize:     file.FileSize,
		Version:      1,
	}
	return c.upload(ctx, document)
}

// UploadDocumentVersion records file as the successor of prior. The prior
// version stays in place; only the new one is current. prior must be the
// current version of its chain, counting successors still in flight.
func (c *Coordinator) UploadDocumentVersion(ctx context.Context, prior entities.Document, file entities.FileMeta) *Handle[entities.Document] {
	prior = lookup(c.cache.Documents, prior)
	if prior.ID <= 0 {
		return failed(c, entities.KindDocument, OpCreate, prior, prior.ID, ErrProvisional)
	}
	if len(entities.Successors(c.cachedDocuments(), prior.ID)) > 0 {
		return failed(c, entities.KindDocument, OpCreate, prior, prior.ID, ErrNotCurrent)
	}
	return c.upload(ctx, entities.NextVersion(prior, file))
}

func (c *Coordinator) upload(ctx context.Context, document entities.Document) *Handle[entities.Document] {
	k := c.documents()
	if k.service == nil {
		return failed(c, k.kind, OpCreate, document, 0, errMissingServices)
	}
	if document.AssignmentID <= 0 || !document.Type.Known() || strings.TrimSpace(document.FileName) == "" {
		return failed(c, k.kind, OpCreate, document, 0, ErrInvalidEntity)
	}
	if err := entities.ValidateFileSize(document.FileSize, c.assignmentBytes(document.AssignmentID), c.storageBytes()); err != nil {
		return failed(c, k.kind, OpCreate, document, 0, err)
	}

	temp := c.tempID()
	provisional := k.withID(document, temp)
	return run(ctx, c, plan[entities.Document]{
		kind:       k.kind,
		operation:  OpCreate,
		entityID:   temp,
		optimistic: provisional,
		apply: func(tx *cache.Tx) []cache.Undo {
			var undos []cache.Undo
			for _, key := range c.admitting(tx, provisional) {
				undos = append(undos, k.table.PrependIn(tx, key, provisional))
			}
			return append(undos, c.adjustStorage(tx, provisional.FileSize, 1)...)
		},
		call: func(ctx context.Context) (entities.Document, error) {
			return k.service.Create(ctx, k.withID(document, 0))
		},
		confirm: func(tx *cache.Tx, echo entities.Document) {
			patchEverywhere(tx, k.table, temp, replaceWith(echo))
		},
		scope: invalidation.Scope{AssignmentIDs: []int64{document.AssignmentID}},
	})
}

func (c *Coordinator) UpdateDocument(ctx context.Context, document entities.Document, patch entities.DocumentPatch) *Handle[entities.Document] {
	document = lookup(c.cache.Documents, document)
	k := c.documents()
	if k.service == nil {
		return failed(c, k.kind, OpUpdate, document, document.ID, errMissingServices)
	}
	if document.ID <= 0 {
		return failed(c, k.kind, OpUpdate, document, document.ID, ErrProvisional)
	}
	return run(ctx, c, plan[entities.Document]{
		kind:       k.kind,
		operation:  OpUpdate,
		entityID:   document.ID,
		optimistic: patch.Apply(document),
		apply: func(tx *cache.Tx) []cache.Undo {
			return patchEverywhere(tx, k.table, document.ID, patch.Apply)
		},
		call: func(ctx context.Context) (entities.Document, error) {
			return patch.Apply(document), k.service.Update(ctx, document, patch.Column(), patch.Value())
		},
		scope: invalidation.Scope{AssignmentIDs: []int64{document.AssignmentID}},
	})
}

// DeleteDocument removes one version together with every version built on
// top of it, and releases their bytes from the cached storage aggregate.
func (c *Coordinator) DeleteDocument(ctx context.Context, document entities.Document) *Handle[entities.Document] {
	document = lookup(c.cache.Documents, document)
	k := c.documents()
	if k.service == nil {
		return failed(c, k.kind, OpDelete, document, document.ID, errMissingServices)
	}
	if document.ID <= 0 {
		return failed(c, k.kind, OpDelete, document, document.ID, ErrProvisional)
	}
	return run(ctx, c, plan[entities.Document]{
		kind:       k.kind,
		operation:  OpDelete,
		entityID:   document.ID,
		optimistic: document,
		apply: func(tx *cache.Tx) []cache.Undo {
			cached := c.documentsIn(tx)
			released := entities.Successors(cached, document.ID)
			for _, item := range cached {
				if item.ID == document.ID {
					released = append(released, item)
				}
			}
			undos := removeEverywhere(tx, k.table, document.ID)
			undos = append(undos, c.graph.CascadeIn(tx, k.kind, invalidation.Ref{ID: document.ID})...)
			if len(undos) == 0 {
				return nil
			}
			var bytes int64
			for _, item := range released {
				bytes += item.FileSize
			}
			return append(undos, c.adjustStorage(tx, -bytes, -len(released))...)
		},
		call: func(ctx context.Context) (entities.Document, error) {
			return document, k.service.Delete(ctx, document)
		},
		scope: invalidation.Scope{AssignmentIDs: []int64{document.AssignmentID}},
	})
}

// admitting lists the present document partitions that would list document,
// or the partition for its assignment and type when none is present.
func (c *Coordinator) admitting(tx *cache.Tx, document entities.Document) []cache.Key {
	var keys []cache.Key
	for _, key := range c.cache.Documents.KeysIn(tx) {
		if key.Admits(document) {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		keys = append(keys, cache.DocumentsKey(document.AssignmentID, document.Type))
	}
	return keys
}

func (c *Coordinator) adjustStorage(tx *cache.Tx, bytes int64, count int) []cache.Undo {
	snapshot := c.cache.Storage.PatchIn(tx, cache.KindKey(entities.KindStorage),
		func(entities.StorageInfo) bool { return true },
		func(info entities.StorageInfo) entities.StorageInfo {
			info.TotalSize = max(info.TotalSize+bytes, 0)
			info.DocumentCount = max(info.DocumentCount+count, 0)
			return info
		})
	if !snapshot.Changed() {
		return nil
	}
	return []cache.Undo{snapshot}
}

// assignmentBytes sums the cached documents of one assignment.
func (c *Coordinator) assignmentBytes(assignmentID int64) int64 {
	var total int64
	for _, document := range c.cachedDocuments() {
		if document.AssignmentID == assignmentID {
			total += document.FileSize
		}
	}
	return total
}

// cachedDocuments lists every cached document once however many partitions
// hold it.
func (c *Coordinator) cachedDocuments() []entities.Document {
	return uniqueDocuments(c.cache.Documents.Keys(), func(key cache.Key) []entities.Document {
		return c.cache.Documents.Get(key).Items
	})
}

// documentsIn is cachedDocuments for use inside a transaction.
func (c *Coordinator) documentsIn(tx *cache.Tx) []entities.Document {
	return uniqueDocuments(c.cache.Documents.KeysIn(tx), func(key cache.Key) []entities.Document {
		items, _ := c.cache.Documents.ListIn(tx, key)
		return items
	})
}

func uniqueDocuments(keys []cache.Key, list func(cache.Key) []entities.Document) []entities.Document {
	seen := make(map[int64]struct{})
	var out []entities.Document
	for _, key := range keys {
		for _, document := range list(key) {
			if _, ok := seen[document.ID]; ok {
				continue
			}
			seen[document.ID] = struct{}{}
			out = append(out, document)
		}
	}
	return out
}

func (c *Coordinator) storageBytes() int64 {
	items := c.cache.Storage.Get(cache.KindKey(entities.KindStorage)).Items
	if len(items) == 0 {
		return 0
	}
	return items[0].TotalSize
}
