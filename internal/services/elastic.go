package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"bookstore_back_end/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ErrSearchDisabled = errors.New("client Elasticsearch non initialisé")

const searchSize = 50

// BookIndex maintient l'index de recherche plein texte des livres.
type BookIndex struct {
	client *elasticsearch.Client
	index  string
}

func NewBookIndex(client *elasticsearch.Client, index string) *BookIndex {
	return &BookIndex{client: client, index: index}
}

func (i *BookIndex) Enabled() bool { return i != nil && i.client != nil }

// Index indexe (ou réindexe) un livre, identifié par son id.
func (i *BookIndex) Index(ctx context.Context, b models.Book) error {
	if !i.Enabled() {
		return ErrSearchDisabled
	}

	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: b.ID.String(),
		Body:       bytes.NewReader(data),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("erreur envoi Elastic: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elastic a refusé %s: %s", b.ID, res.Status())
	}
	slog.DebugContext(ctx, "livre indexé", "book_id", b.ID, "title", b.Title)
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source models.Book `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search cherche dans le titre (boosté) et la description.
func (i *BookIndex) Search(ctx context.Context, query string) ([]models.Book, error) {
	if !i.Enabled() {
		return nil, ErrSearchDisabled
	}

	var buf bytes.Buffer
	q := map[string]any{
		"size": searchSize,
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"title^2", "description"},
				"fuzziness": "AUTO",
			},
		},
	}
	if err := json.NewEncoder(&buf).Encode(q); err != nil {
		return nil, fmt.Errorf("erreur encodage requête: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{i.index},
		Body:  &buf,
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return nil, fmt.Errorf("erreur requête Elastic: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("recherche elastic: %s", res.Status())
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("erreur décodage JSON: %w", err)
	}

	books := make([]models.Book, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		books = append(books, h.Source)
	}
	return books, nil
}
