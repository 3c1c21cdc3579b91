package twitch

import (
	"time"

	"github.com/valyala/fastjson"

	"github.com/sasagram/streamlog/internal/domain"
)

type User struct {
	ID              string `json:"id"`
	Login           string `json:"login"`
	DisplayName     string `json:"display_name"`
	ProfileImageURL string `json:"profile_image_url"`
	Description     string `json:"description"`
	ViewCount       int64  `json:"view_count"`
}

type Stream struct {
	UserLogin    string    `json:"-"`
	Title        string    `json:"title"`
	GameName     string    `json:"game_name"`
	ViewerCount  int64     `json:"viewer_count"`
	StartedAt    time.Time `json:"started_at"`
	ThumbnailURL string    `json:"thumbnail_url"`
}

type VideoListing struct {
	Vods   []domain.Vod
	Cursor string
}

type Segment struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	CategoryID    string     `json:"category_id"`
	CategoryName  string     `json:"category"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       *time.Time `json:"end_time"`
	IsRecurring   bool       `json:"is_recurring"`
	CanceledUntil *time.Time `json:"canceled_until"`
}

type Vacation struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

type Schedule struct {
	Segments []Segment
	Vacation *Vacation
}

type ResponseHandler func(*fastjson.Value) (interface{}, error)

// dataArray returns the "data" array every Helix list endpoint answers with.
func dataArray(val *fastjson.Value) ([]*fastjson.Value, error) {
	data := val.Get("data")
	if data == nil || data.Type() != fastjson.TypeArray {
		return nil, malformed("data is not an array")
	}
	arr, _ := data.Array()
	return arr, nil
}

func requiredString(val *fastjson.Value, key string) (string, error) {
	s := string(val.GetStringBytes(key))
	if s == "" {
		return "", malformed("missing %s", key)
	}
	return s, nil
}

func requiredTime(val *fastjson.Value, key string) (time.Time, error) {
	raw, err := requiredString(val, key)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, malformed("%s: %v", key, err)
	}
	return t, nil
}

func optionalTime(val *fastjson.Value, key string) *time.Time {
	raw := string(val.GetStringBytes(key))
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &t
}

func NewUser(val *fastjson.Value) (*User, error) {
	u := &User{}

	var err error
	if u.ID, err = requiredString(val, "id"); err != nil {
		return nil, err
	}
	if u.Login, err = requiredString(val, "login"); err != nil {
		return nil, err
	}
	u.DisplayName = string(val.GetStringBytes("display_name"))
	u.ProfileImageURL = string(val.GetStringBytes("profile_image_url"))
	u.Description = string(val.GetStringBytes("description"))
	u.ViewCount = val.GetInt64("view_count")

	return u, nil
}

func NewUsersResponse(val *fastjson.Value) (interface{}, error) {
	arr, err := dataArray(val)
	if err != nil {
		return nil, err
	}

	users := make([]*User, 0, len(arr))
	for _, item := range arr {
		u, err := NewUser(item)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func NewStream(val *fastjson.Value) (*Stream, error) {
	s := &Stream{}

	var err error
	if s.UserLogin, err = requiredString(val, "user_login"); err != nil {
		return nil, err
	}
	if s.StartedAt, err = requiredTime(val, "started_at"); err != nil {
		return nil, err
	}
	s.Title = string(val.GetStringBytes("title"))
	s.GameName = string(val.GetStringBytes("game_name"))
	s.ViewerCount = val.GetInt64("viewer_count")
	s.ThumbnailURL = string(val.GetStringBytes("thumbnail_url"))

	return s, nil
}

func NewStreamsResponse(val *fastjson.Value) (interface{}, error) {
	arr, err := dataArray(val)
	if err != nil {
		return nil, err
	}

	streams := make([]*Stream, 0, len(arr))
	for _, item := range arr {
		s, err := NewStream(item)
		if err != nil {
			return nil, err
		}
		streams = append(streams, s)
	}
	return streams, nil
}

func NewVod(val *fastjson.Value) (domain.Vod, error) {
	v := domain.Vod{}

	var err error
	if v.ID, err = requiredString(val, "id"); err != nil {
		return v, err
	}
	if v.URL, err = requiredString(val, "url"); err != nil {
		return v, err
	}
	if v.CreatedAt, err = requiredTime(val, "created_at"); err != nil {
		return v, err
	}
	v.Title = string(val.GetStringBytes("title"))
	v.ThumbnailURL = string(val.GetStringBytes("thumbnail_url"))
	v.ViewCount = val.GetInt64("view_count")
	v.Duration = string(val.GetStringBytes("duration"))
	v.Description = string(val.GetStringBytes("description"))

	return v, nil
}

func NewVideoListing(val *fastjson.Value) (interface{}, error) {
	arr, err := dataArray(val)
	if err != nil {
		return nil, err
	}

	vl := &VideoListing{Vods: make([]domain.Vod, 0, len(arr))}
	for _, item := range arr {
		v, err := NewVod(item)
		if err != nil {
			return nil, err
		}
		vl.Vods = append(vl.Vods, v)
	}
	vl.Cursor = string(val.GetStringBytes("pagination", "cursor"))

	return vl, nil
}

func NewClip(val *fastjson.Value) (domain.Clip, error) {
	c := domain.Clip{}

	var err error
	if c.ID, err = requiredString(val, "id"); err != nil {
		return c, err
	}
	if c.URL, err = requiredString(val, "url"); err != nil {
		return c, err
	}
	if c.CreatedAt, err = requiredTime(val, "created_at"); err != nil {
		return c, err
	}
	c.Title = string(val.GetStringBytes("title"))
	c.ThumbnailURL = string(val.GetStringBytes("thumbnail_url"))
	c.ViewCount = val.GetInt64("view_count")
	c.DurationSeconds = val.GetFloat64("duration")
	c.CreatorName = string(val.GetStringBytes("creator_name"))

	return c, nil
}

func NewClipsResponse(val *fastjson.Value) (interface{}, error) {
	arr, err := dataArray(val)
	if err != nil {
		return nil, err
	}

	clips := make([]domain.Clip, 0, len(arr))
	for _, item := range arr {
		c, err := NewClip(item)
		if err != nil {
			return nil, err
		}
		clips = append(clips, c)
	}
	return clips, nil
}

func NewFollowersResponse(val *fastjson.Value) (interface{}, error) {
	if !val.Exists("total") {
		return nil, malformed("missing total")
	}
	return val.GetInt64("total"), nil
}

func NewSegment(val *fastjson.Value) (Segment, error) {
	s := Segment{}

	var err error
	if s.ID, err = requiredString(val, "id"); err != nil {
		return s, err
	}
	if s.StartTime, err = requiredTime(val, "start_time"); err != nil {
		return s, err
	}
	s.Title = string(val.GetStringBytes("title"))
	s.EndTime = optionalTime(val, "end_time")
	s.CanceledUntil = optionalTime(val, "canceled_until")
	s.IsRecurring = val.GetBool("is_recurring")

	if category := val.Get("category"); category != nil {
		switch category.Type() {
		case fastjson.TypeObject:
			s.CategoryID = string(category.GetStringBytes("id"))
			s.CategoryName = string(category.GetStringBytes("name"))
		case fastjson.TypeString:
			s.CategoryID = string(category.GetStringBytes())
		}
	}

	return s, nil
}

func NewScheduleResponse(val *fastjson.Value) (interface{}, error) {
	data := val.Get("data")
	if data == nil || data.Type() != fastjson.TypeObject {
		return nil, malformed("data is not an object")
	}

	sch := &Schedule{}
	for _, item := range data.GetArray("segments") {
		s, err := NewSegment(item)
		if err != nil {
			return nil, err
		}
		sch.Segments = append(sch.Segments, s)
	}

	if vac := data.Get("vacation"); vac != nil && vac.Type() == fastjson.TypeObject {
		start, err := requiredTime(vac, "start_time")
		if err != nil {
			return nil, err
		}
		end, err := requiredTime(vac, "end_time")
		if err != nil {
			return nil, err
		}
		sch.Vacation = &Vacation{StartTime: start, EndTime: end}
	}

	return sch, nil
}

func NewGamesResponse(val *fastjson.Value) (interface{}, error) {
	arr, err := dataArray(val)
	if err != nil {
		return nil, err
	}

	games := make(map[string]string, len(arr))
	for _, item := range arr {
		id, err := requiredString(item, "id")
		if err != nil {
			return nil, err
		}
		games[id] = string(item.GetStringBytes("name"))
	}
	return games, nil
}
