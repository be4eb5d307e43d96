package domain

import "fmt"

// Photo представляет модель фотографии в системе,
// соответствует таблице photos в бд
type Photo struct {
	ID         string `json:"id" db:"id"`
	Hash       string `json:"hash" db:"hash"`
	MimeType   string `json:"mime_type" db:"mime_type"`
	Width      int    `json:"width" db:"width"`
	Height     int    `json:"height" db:"height"`
	CapturedAt int64  `json:"captured_at" db:"captured_at"`
	UploadedAt int64  `json:"uploaded_at" db:"uploaded_at"`

	Albums      []string           `json:"albums,omitempty" db:"-"`
	Exif        []MetadataField    `json:"exif,omitempty" db:"-"`
	Derivatives []DerivativeRecord `json:"derivatives,omitempty" db:"-"`
}

func (Photo) TableName() string {
	return "photos"
}

// Derivative возвращает запись о качестве, если она известна.
func (p *Photo) Derivative(q Quality) (DerivativeRecord, bool) {
	for _, d := range p.Derivatives {
		if d.Quality == q {
			return d, true
		}
	}
	return DerivativeRecord{}, false
}

// MetadataField - одно поле EXIF, сохраненное для фото,
// соответствует таблице photo_exif в бд
type MetadataField struct {
	PhotoID  string `json:"-" db:"photo_id"`
	Key      string `json:"key" db:"tag"`
	Value    string `json:"value" db:"value"`
	Position int    `json:"-" db:"position"`
}

func (MetadataField) TableName() string {
	return "photo_exif"
}

// AlbumLink - связь Many-to-Many между Photo и Album,
// соответствует таблице photo_albums в бд
type AlbumLink struct {
	PhotoID string `json:"photo_id" db:"photo_id"`
	AlbumID string `json:"album_id" db:"album_id"`
}

func (AlbumLink) TableName() string {
	return "photo_albums"
}

// DerivativeRecord хранит доступность конкретного качества фото,
// соответствует таблице photo_derivatives в бд
type DerivativeRecord struct {
	PhotoID   string  `json:"-" db:"photo_id"`
	Quality   Quality `json:"quality" db:"quality"`
	Available bool    `json:"available" db:"available"`
	URL       string  `json:"url,omitempty" db:"url"`
	Width     int     `json:"width" db:"width"`
	Height    int     `json:"height" db:"height"`
	UpdatedAt int64   `json:"updated_at" db:"updated_at"`
}

func (DerivativeRecord) TableName() string {
	return "photo_derivatives"
}

// ObjectKey формирует ключ объекта в хранилище: {photo_id}_{quality}
func ObjectKey(photoID string, q Quality) string {
	return fmt.Sprintf("%s_%s", photoID, q)
}
