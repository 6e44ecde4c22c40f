package feed

import (
	"time"

	"github.com/okian/creatorboard/internal/domain/model"
)

type author struct {
	FID      int64  `json:"fid"`
	Username string `json:"username"`
}

type reactions struct {
	LikesCount int64 `json:"likes_count"`
}

type cast struct {
	Hash       string    `json:"hash"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	Author     author    `json:"author"`
	Reactions  reactions `json:"reactions"`
	ParentHash *string   `json:"parent_hash"`
}

type nextPage struct {
	Cursor string `json:"cursor"`
}

type searchResponse struct {
	Result struct {
		Casts []cast   `json:"casts"`
		Next  nextPage `json:"next"`
	} `json:"result"`
}

type notification struct {
	Type string `json:"type"`
	Cast *cast  `json:"cast"`
}

type notificationsResponse struct {
	Notifications []notification `json:"notifications"`
	Next          nextPage       `json:"next"`
}

type castResponse struct {
	Cast cast `json:"cast"`
}

type usersResponse struct {
	Users []author `json:"users"`
}

type publishRequest struct {
	SignerUUID string `json:"signer_uuid"`
	Text       string `json:"text"`
	Parent     string `json:"parent,omitempty"`
	Idem       string `json:"idem,omitempty"`
}

type publishResponse struct {
	Success bool `json:"success"`
	Cast    struct {
		Hash string `json:"hash"`
	} `json:"cast"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c cast) parent() string {
	if c.ParentHash == nil {
		return ""
	}
	return *c.ParentHash
}

func (c cast) post() model.RawPost {
	return model.RawPost{
		ID:           c.Hash,
		AuthorID:     c.Author.FID,
		Engagement:   c.Reactions.LikesCount,
		CreatedAt:    c.Timestamp,
		AuthorHandle: c.Author.Username,
		Body:         c.Text,
		ParentID:     c.parent(),
	}
}

func (c cast) mention() model.RawMention {
	return model.RawMention{
		ID:           c.Hash,
		AuthorID:     c.Author.FID,
		CreatedAt:    c.Timestamp,
		AuthorHandle: c.Author.Username,
		Body:         c.Text,
		ParentID:     c.parent(),
	}
}
