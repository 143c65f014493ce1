package store

import "time"

type IdeaStatus string

const (
	StatusIdea         IdeaStatus = "idea"
	StatusChecked      IdeaStatus = "checked"
	StatusPreparing    IdeaStatus = "preparing"
	StatusEventPlanned IdeaStatus = "event_planned"
	StatusRejected     IdeaStatus = "rejected"
	StatusCompleted    IdeaStatus = "completed"
)

// IdeaStatuses lists every status in pipeline order.
var IdeaStatuses = []IdeaStatus{
	StatusIdea,
	StatusChecked,
	StatusPreparing,
	StatusEventPlanned,
	StatusRejected,
	StatusCompleted,
}

func (s IdeaStatus) Valid() bool {
	for _, status := range IdeaStatuses {
		if s == status {
			return true
		}
	}
	return false
}

type IdeaMode string

const (
	ModeOnline  IdeaMode = "online"
	ModeOffline IdeaMode = "offline"
)

func (m IdeaMode) Valid() bool {
	return m == ModeOnline || m == ModeOffline
}

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

type User struct {
	ID             string    `bson:"_id"`
	DisplayName    string    `bson:"displayName"`
	Email          string    `bson:"email"`
	PasswordHash   string    `bson:"passwordHash"`
	Role           string    `bson:"role"`
	PostCount      int       `bson:"postCount"`
	ThemePostCount int       `bson:"themePostCount"`
	CreatedAt      time.Time `bson:"createdAt"`
	UpdatedAt      time.Time `bson:"updatedAt"`
}

type UserSettings struct {
	UserID             string    `bson:"_id"`
	EmailNotifications bool      `bson:"emailNotifications"`
	Language           string    `bson:"language"`
	UpdatedAt          time.Time `bson:"updatedAt"`
}

// DefaultUserSettings is returned for users who never saved settings.
func DefaultUserSettings(userID string) UserSettings {
	return UserSettings{UserID: userID, EmailNotifications: true, Language: "ja"}
}

type ChecklistItem struct {
	Label string `json:"label" bson:"label"`
	Done  bool   `json:"done" bson:"done"`
}

// IdeaAction is one entry of an idea's append-only status history.
type IdeaAction struct {
	Action    string    `json:"action" bson:"action"`
	Details   string    `json:"details" bson:"details"`
	Actor     string    `json:"actor" bson:"actor"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

type Idea struct {
	ID          string          `bson:"_id"`
	Title       string          `bson:"title"`
	Description string          `bson:"description"`
	Mode        IdeaMode        `bson:"mode"`
	Status      IdeaStatus      `bson:"status"`
	Likes       int             `bson:"likes"`
	ThemeID     *string         `bson:"themeId,omitempty"`
	UserID      *string         `bson:"userId,omitempty"`
	AuthorName  string          `bson:"authorName"`
	AdminMemo   string          `bson:"adminMemo"`
	Checklist   []ChecklistItem `bson:"checklist"`
	History     []IdeaAction    `bson:"history"`
	CreatedAt   time.Time       `bson:"createdAt"`
	UpdatedAt   time.Time       `bson:"updatedAt"`
}

type Comment struct {
	ID        string    `bson:"_id"`
	IdeaID    string    `bson:"ideaId"`
	Text      string    `bson:"text"`
	UserID    *string   `bson:"userId,omitempty"`
	CreatedAt time.Time `bson:"createdAt"`
}

type Like struct {
	IdeaID    string    `bson:"ideaId"`
	VisitorID string    `bson:"visitorId"`
	CreatedAt time.Time `bson:"createdAt"`
}

type Theme struct {
	ID          string     `bson:"_id"`
	Title       string     `bson:"title"`
	Description string     `bson:"description"`
	StartDate   time.Time  `bson:"startDate"`
	EndDate     time.Time  `bson:"endDate"`
	EventDate   *time.Time `bson:"eventDate,omitempty"`
	IsActive    bool       `bson:"isActive"`
	CreatedAt   time.Time  `bson:"createdAt"`
	UpdatedAt   time.Time  `bson:"updatedAt"`
}

type Event struct {
	ID               string    `bson:"_id"`
	ThemeID          *string   `bson:"themeId,omitempty"`
	IdeaID           *string   `bson:"ideaId,omitempty"`
	Title            string    `bson:"title"`
	Description      string    `bson:"description"`
	Date             time.Time `bson:"date"`
	ParticipantCount int       `bson:"participantCount"`
	Content          string    `bson:"content"`
	NextActions      string    `bson:"nextActions"`
	ReportKey        string    `bson:"reportKey"`
	CreatedAt        time.Time `bson:"createdAt"`
	UpdatedAt        time.Time `bson:"updatedAt"`
}

const (
	NotificationStatusChange = "status_change"
	NotificationComment      = "comment"
	NotificationTheme        = "theme"
	NotificationSystem       = "system"
)

type Notification struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"userId"`
	Title     string    `bson:"title"`
	Message   string    `bson:"message"`
	Type      string    `bson:"type"`
	IsRead    bool      `bson:"isRead"`
	Link      string    `bson:"link"`
	CreatedAt time.Time `bson:"createdAt"`
}

type Contact struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Email     string    `bson:"email"`
	Subject   string    `bson:"subject"`
	Message   string    `bson:"message"`
	CreatedAt time.Time `bson:"createdAt"`
}

type BusinessContact struct {
	ID        string    `bson:"_id"`
	Company   string    `bson:"company"`
	Name      string    `bson:"name"`
	Email     string    `bson:"email"`
	Phone     string    `bson:"phone"`
	Message   string    `bson:"message"`
	CreatedAt time.Time `bson:"createdAt"`
}

type AdminComment struct {
	ID        string    `bson:"_id"`
	IdeaID    string    `bson:"ideaId"`
	Author    string    `bson:"author"`
	Body      string    `bson:"body"`
	CreatedAt time.Time `bson:"createdAt"`
}

type DeletionLog struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"userId"`
	Email     string    `bson:"email"`
	Reason    string    `bson:"reason"`
	DeletedAt time.Time `bson:"deletedAt"`
}

// ThemePatch carries the fields of an update; nil pointers are left unchanged.
type ThemePatch struct {
	Title          *string
	Description    *string
	StartDate      *time.Time
	EndDate        *time.Time
	EventDate      *time.Time
	ClearEventDate bool
	IsActive       *bool
}

// Apply returns a copy of theme with the patch applied. IsActive is left to the
// store so activation stays atomic.
func (p ThemePatch) Apply(theme Theme) Theme {
	if p.Title != nil {
		theme.Title = *p.Title
	}
	if p.Description != nil {
		theme.Description = *p.Description
	}
	if p.StartDate != nil {
		theme.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		theme.EndDate = *p.EndDate
	}
	if p.ClearEventDate {
		theme.EventDate = nil
	} else if p.EventDate != nil {
		eventDate := *p.EventDate
		theme.EventDate = &eventDate
	}
	return theme
}

// Stats summarises the dashboard counters.
type Stats struct {
	IdeasByStatus    map[IdeaStatus]int
	Users            int
	Contacts         int
	BusinessContacts int
}
