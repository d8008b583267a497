package models

import (
	"time"

	"github.com/google/uuid"
)

// Attachment points at binary content held by the asset storage.
type Attachment struct {
	URL        string `json:"url"`
	ExternalID string `json:"externalId"`
	Filename   string `json:"filename"`
	MIMEType   string `json:"mimeType"`
	SizeBytes  int64  `json:"sizeBytes"`
}

type Post struct {
	ID          uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID     uuid.UUID    `gorm:"type:uuid;not null;index" json:"owner"`
	Author      string       `gorm:"not null" json:"author"`
	Description string       `gorm:"type:text;not null" json:"description"`
	Topic       *string      `json:"topic,omitempty"`
	Hyperlink   *string      `json:"hyperlink,omitempty"`
	Images      []Attachment `gorm:"type:jsonb;serializer:json" json:"images"`
	PDF         *Attachment  `gorm:"column:pdf;type:jsonb;serializer:json" json:"pdf,omitempty"`
	CreatedAt   time.Time    `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Attachments returns every attachment of the post, images first.
func (p *Post) Attachments() []Attachment {
	all := make([]Attachment, 0, len(p.Images)+1)
	all = append(all, p.Images...)
	if p.PDF != nil {
		all = append(all, *p.PDF)
	}
	return all
}

// PostPatch carries a partial update. Nil fields are left untouched.
type PostPatch struct {
	Author      *string
	Description *string
	Topic       *string
	Hyperlink   *string
	Images      *[]Attachment
	PDF         *Attachment
}

// Apply copies the present fields onto p and returns the changed column names.
func (pp PostPatch) Apply(p *Post) []string {
	var cols []string
	if pp.Author != nil {
		p.Author = *pp.Author
		cols = append(cols, "author")
	}
	if pp.Description != nil {
		p.Description = *pp.Description
		cols = append(cols, "description")
	}
	if pp.Topic != nil {
		p.Topic = pp.Topic
		cols = append(cols, "topic")
	}
	if pp.Hyperlink != nil {
		p.Hyperlink = pp.Hyperlink
		cols = append(cols, "hyperlink")
	}
	if pp.Images != nil {
		p.Images = *pp.Images
		cols = append(cols, "images")
	}
	if pp.PDF != nil {
		p.PDF = pp.PDF
		cols = append(cols, "pdf")
	}
	return cols
}

func (pp PostPatch) Empty() bool {
	return pp.Author == nil && pp.Description == nil && pp.Topic == nil &&
		pp.Hyperlink == nil && pp.Images == nil && pp.PDF == nil
}
