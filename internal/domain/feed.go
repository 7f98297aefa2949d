package domain

import "time"

// Item представляет отдельную новость в ленте.
// Link - канонический адрес статьи, Description - HTML-содержимое,
// которое может быть заменено при обогащении.
type Item struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Description string    `json:"description"`
	Author      string    `json:"author,omitempty"`
	GUID        string    `json:"guid,omitempty"`
	Feed        string    `json:"feed,omitempty"`
	PubDate     time.Time `json:"pub_date"`
}

// URL возвращает адрес статьи.
func (i *Item) URL() string { return i.Link }

// Body возвращает HTML-содержимое новости.
func (i *Item) Body() string { return i.Description }

// SetBody заменяет HTML-содержимое новости.
func (i *Item) SetBody(body string) { i.Description = body }

// Feed представляет полную ленту с метаданными и списком новостей.
type Feed struct {
	Title       string
	Link        string
	Description string
	Items       []Item
}
