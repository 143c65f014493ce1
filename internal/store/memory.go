package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps every collection in process. All operations hold one
// mutex, so multi-step writes are atomic with respect to each other.
type MemoryStore struct {
	mu sync.RWMutex

	users            map[string]User
	settings         map[string]UserSettings
	refreshSessions  map[string]memoryRefreshSession
	ideas            map[string]Idea
	comments         map[string]Comment
	likes            map[likeKey]Like
	adminComments    map[string]AdminComment
	themes           map[string]Theme
	events           map[string]Event
	notifications    map[string]Notification
	contacts         []Contact
	businessContacts []BusinessContact
	deletionLogs     []DeletionLog
}

type likeKey struct {
	ideaID    string
	visitorID string
}

type memoryRefreshSession struct {
	userID    string
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:           map[string]User{},
		settings:        map[string]UserSettings{},
		refreshSessions: map[string]memoryRefreshSession{},
		ideas:           map[string]Idea{},
		comments:        map[string]Comment{},
		likes:           map[likeKey]Like{},
		adminComments:   map[string]AdminComment{},
		themes:          map[string]Theme{},
		events:          map[string]Event{},
		notifications:   map[string]Notification{},
	}
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// Users

func (s *MemoryStore) CreateUser(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return ErrConflict
		}
	}
	if _, ok := s.users[user.ID]; ok {
		return ErrConflict
	}
	user.UpdatedAt = user.CreatedAt
	s.users[user.ID] = user
	return nil
}

func (s *MemoryStore) GetUserByID(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return User{}, ErrNotFound
}

func (s *MemoryStore) ListUsers(context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return users, nil
}

func (s *MemoryStore) updateUser(id string, fn func(*User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	fn(&user)
	user.UpdatedAt = time.Now().UTC()
	s.users[id] = user
	return nil
}

func (s *MemoryStore) UpdateUserDisplayName(_ context.Context, id, displayName string) error {
	return s.updateUser(id, func(u *User) { u.DisplayName = displayName })
}

func (s *MemoryStore) UpdateUserRole(_ context.Context, id, role string) error {
	return s.updateUser(id, func(u *User) { u.Role = role })
}

func (s *MemoryStore) UpdateUserPassword(_ context.Context, id, passwordHash string) error {
	return s.updateUser(id, func(u *User) { u.PasswordHash = passwordHash })
}

func (s *MemoryStore) DeleteUserAccount(_ context.Context, userID string, entry DeletionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return ErrNotFound
	}
	delete(s.users, userID)
	delete(s.settings, userID)
	for hash, session := range s.refreshSessions {
		if session.userID == userID {
			delete(s.refreshSessions, hash)
		}
	}
	for id, n := range s.notifications {
		if n.UserID == userID {
			delete(s.notifications, id)
		}
	}
	for id, idea := range s.ideas {
		if idea.UserID != nil && *idea.UserID == userID {
			idea.UserID = nil
			s.ideas[id] = idea
		}
	}
	for id, comment := range s.comments {
		if comment.UserID != nil && *comment.UserID == userID {
			comment.UserID = nil
			s.comments[id] = comment
		}
	}
	s.deletionLogs = append(s.deletionLogs, entry)
	return nil
}

func (s *MemoryStore) ListDeletionLogs(context.Context) ([]DeletionLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	logs := append([]DeletionLog(nil), s.deletionLogs...)
	sort.Slice(logs, func(i, j int) bool { return logs[i].DeletedAt.After(logs[j].DeletedAt) })
	return logs, nil
}

func (s *MemoryStore) GetUserSettings(_ context.Context, userID string) (UserSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if settings, ok := s.settings[userID]; ok {
		return settings, nil
	}
	return DefaultUserSettings(userID), nil
}

func (s *MemoryStore) SaveUserSettings(_ context.Context, settings UserSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[settings.UserID] = settings
	return nil
}

// Refresh sessions

func (s *MemoryStore) SaveRefreshSession(_ context.Context, tokenHash, userID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshSessions[tokenHash] = memoryRefreshSession{userID: userID, expiresAt: expiresAt}
	return nil
}

func (s *MemoryStore) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refreshSessions, tokenHash)
	return nil
}

// ConsumeRefreshSession redeems a live token exactly once.
func (s *MemoryStore) ConsumeRefreshSession(_ context.Context, tokenHash string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.refreshSessions[tokenHash]
	if !ok {
		return User{}, ErrNotFound
	}
	delete(s.refreshSessions, tokenHash)
	if time.Now().After(session.expiresAt) {
		return User{}, ErrNotFound
	}
	user, ok := s.users[session.userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

// Ideas

func cloneIdea(idea Idea) Idea {
	idea.Checklist = append([]ChecklistItem{}, idea.Checklist...)
	idea.History = append([]IdeaAction{}, idea.History...)
	return idea
}

func (s *MemoryStore) InsertIdea(_ context.Context, idea Idea) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ideas[idea.ID]; ok {
		return ErrConflict
	}
	if idea.ThemeID != nil {
		if _, ok := s.themes[*idea.ThemeID]; !ok {
			return ErrNotFound
		}
	}
	idea.Likes = 0
	idea.UpdatedAt = idea.CreatedAt
	s.ideas[idea.ID] = cloneIdea(idea)
	if idea.UserID != nil {
		if user, ok := s.users[*idea.UserID]; ok {
			user.PostCount++
			if idea.ThemeID != nil {
				user.ThemePostCount++
			}
			s.users[user.ID] = user
		}
	}
	return nil
}

func (s *MemoryStore) GetIdea(_ context.Context, id string) (Idea, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idea, ok := s.ideas[id]
	if !ok {
		return Idea{}, ErrNotFound
	}
	return cloneIdea(idea), nil
}

func (s *MemoryStore) ListIdeas(context.Context) ([]Idea, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ideas := make([]Idea, 0, len(s.ideas))
	for _, idea := range s.ideas {
		ideas = append(ideas, cloneIdea(idea))
	}
	sort.Slice(ideas, func(i, j int) bool {
		if ideas[i].CreatedAt.Equal(ideas[j].CreatedAt) {
			return ideas[i].ID > ideas[j].ID
		}
		return ideas[i].CreatedAt.After(ideas[j].CreatedAt)
	})
	return ideas, nil
}

func (s *MemoryStore) UpdateIdeaStatus(_ context.Context, id string, status IdeaStatus, action IdeaAction) (Idea, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idea, ok := s.ideas[id]
	if !ok {
		return Idea{}, ErrNotFound
	}
	idea = cloneIdea(idea)
	idea.Status = status
	idea.History = append(idea.History, action)
	idea.UpdatedAt = action.Timestamp
	s.ideas[id] = idea
	return cloneIdea(idea), nil
}

func (s *MemoryStore) UpdateIdeaAdmin(_ context.Context, id, memo string, checklist []ChecklistItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idea, ok := s.ideas[id]
	if !ok {
		return ErrNotFound
	}
	idea.AdminMemo = memo
	idea.Checklist = append([]ChecklistItem{}, checklist...)
	idea.UpdatedAt = time.Now().UTC()
	s.ideas[id] = idea
	return nil
}

func (s *MemoryStore) DeleteIdea(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ideas[id]; !ok {
		return ErrNotFound
	}
	delete(s.ideas, id)
	for commentID, comment := range s.comments {
		if comment.IdeaID == id {
			delete(s.comments, commentID)
		}
	}
	for key := range s.likes {
		if key.ideaID == id {
			delete(s.likes, key)
		}
	}
	for commentID, comment := range s.adminComments {
		if comment.IdeaID == id {
			delete(s.adminComments, commentID)
		}
	}
	for eventID, event := range s.events {
		if event.IdeaID != nil && *event.IdeaID == id {
			event.IdeaID = nil
			s.events[eventID] = event
		}
	}
	return nil
}

// Likes

func (s *MemoryStore) InsertLike(_ context.Context, like Like) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idea, ok := s.ideas[like.IdeaID]
	if !ok {
		return false, ErrNotFound
	}
	key := likeKey{ideaID: like.IdeaID, visitorID: like.VisitorID}
	if _, exists := s.likes[key]; exists {
		return false, nil
	}
	s.likes[key] = like
	idea.Likes++
	s.ideas[idea.ID] = idea
	return true, nil
}

func (s *MemoryStore) DeleteLike(_ context.Context, ideaID, visitorID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := likeKey{ideaID: ideaID, visitorID: visitorID}
	if _, exists := s.likes[key]; !exists {
		return false, nil
	}
	delete(s.likes, key)
	if idea, ok := s.ideas[ideaID]; ok && idea.Likes > 0 {
		idea.Likes--
		s.ideas[ideaID] = idea
	}
	return true, nil
}

func (s *MemoryStore) HasLike(_ context.Context, ideaID, visitorID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.likes[likeKey{ideaID: ideaID, visitorID: visitorID}]
	return exists, nil
}

func (s *MemoryStore) CountLikes(_ context.Context, ideaID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for key := range s.likes {
		if key.ideaID == ideaID {
			count++
		}
	}
	return count, nil
}

// Comments

func (s *MemoryStore) InsertComment(_ context.Context, comment Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ideas[comment.IdeaID]; !ok {
		return ErrNotFound
	}
	s.comments[comment.ID] = comment
	return nil
}

func (s *MemoryStore) ListComments(_ context.Context, ideaID string) ([]Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	comments := make([]Comment, 0)
	for _, comment := range s.comments {
		if comment.IdeaID == ideaID {
			comments = append(comments, comment)
		}
	}
	sort.Slice(comments, func(i, j int) bool {
		if comments[i].CreatedAt.Equal(comments[j].CreatedAt) {
			return comments[i].ID < comments[j].ID
		}
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	return comments, nil
}

func (s *MemoryStore) InsertAdminComment(_ context.Context, comment AdminComment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ideas[comment.IdeaID]; !ok {
		return ErrNotFound
	}
	s.adminComments[comment.ID] = comment
	return nil
}

func (s *MemoryStore) ListAdminComments(_ context.Context, ideaID string) ([]AdminComment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	comments := make([]AdminComment, 0)
	for _, comment := range s.adminComments {
		if comment.IdeaID == ideaID {
			comments = append(comments, comment)
		}
	}
	sort.Slice(comments, func(i, j int) bool { return comments[i].CreatedAt.Before(comments[j].CreatedAt) })
	return comments, nil
}

// Themes

func (s *MemoryStore) InsertTheme(_ context.Context, theme Theme) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.themes[theme.ID]; ok {
		return ErrConflict
	}
	if theme.IsActive {
		s.deactivateThemesLocked(theme.ID)
	}
	theme.UpdatedAt = theme.CreatedAt
	s.themes[theme.ID] = theme
	return nil
}

func (s *MemoryStore) GetTheme(_ context.Context, id string) (Theme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	theme, ok := s.themes[id]
	if !ok {
		return Theme{}, ErrNotFound
	}
	return theme, nil
}

func (s *MemoryStore) ListThemes(context.Context) ([]Theme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	themes := make([]Theme, 0, len(s.themes))
	for _, theme := range s.themes {
		themes = append(themes, theme)
	}
	sort.Slice(themes, func(i, j int) bool {
		if themes[i].StartDate.Equal(themes[j].StartDate) {
			return themes[i].CreatedAt.After(themes[j].CreatedAt)
		}
		return themes[i].StartDate.After(themes[j].StartDate)
	})
	return themes, nil
}

func (s *MemoryStore) GetActiveTheme(context.Context) (*Theme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, theme := range s.themes {
		if theme.IsActive {
			active := theme
			return &active, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) UpdateTheme(_ context.Context, id string, patch ThemePatch) (Theme, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.themes[id]
	if !ok {
		return Theme{}, ErrNotFound
	}
	next := patch.Apply(current)
	if patch.IsActive != nil {
		if *patch.IsActive {
			s.deactivateThemesLocked(id)
		}
		next.IsActive = *patch.IsActive
	}
	next.UpdatedAt = time.Now().UTC()
	s.themes[id] = next
	return next, nil
}

func (s *MemoryStore) ActivateTheme(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	theme, ok := s.themes[id]
	if !ok {
		return ErrNotFound
	}
	s.deactivateThemesLocked(id)
	theme.IsActive = true
	theme.UpdatedAt = time.Now().UTC()
	s.themes[id] = theme
	return nil
}

func (s *MemoryStore) deactivateThemesLocked(exceptID string) {
	for id, theme := range s.themes {
		if theme.IsActive && id != exceptID {
			theme.IsActive = false
			s.themes[id] = theme
		}
	}
}

func (s *MemoryStore) DeleteTheme(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.themes[id]; !ok {
		return ErrNotFound
	}
	delete(s.themes, id)
	for ideaID, idea := range s.ideas {
		if idea.ThemeID != nil && *idea.ThemeID == id {
			idea.ThemeID = nil
			s.ideas[ideaID] = idea
		}
	}
	for eventID, event := range s.events {
		if event.ThemeID != nil && *event.ThemeID == id {
			event.ThemeID = nil
			s.events[eventID] = event
		}
	}
	return nil
}

// Events

func (s *MemoryStore) checkEventRefsLocked(event Event) error {
	if event.ThemeID != nil {
		if _, ok := s.themes[*event.ThemeID]; !ok {
			return ErrNotFound
		}
	}
	if event.IdeaID != nil {
		if _, ok := s.ideas[*event.IdeaID]; !ok {
			return ErrNotFound
		}
	}
	return nil
}

func (s *MemoryStore) InsertEvent(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkEventRefsLocked(event); err != nil {
		return err
	}
	event.UpdatedAt = event.CreatedAt
	s.events[event.ID] = event
	return nil
}

func (s *MemoryStore) GetEvent(_ context.Context, id string) (Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.events[id]
	if !ok {
		return Event{}, ErrNotFound
	}
	return event, nil
}

func (s *MemoryStore) ListEvents(_ context.Context, themeID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]Event, 0)
	for _, event := range s.events {
		if themeID != "" && (event.ThemeID == nil || *event.ThemeID != themeID) {
			continue
		}
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Date.After(events[j].Date) })
	return events, nil
}

func (s *MemoryStore) UpdateEvent(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.events[event.ID]
	if !ok {
		return ErrNotFound
	}
	if err := s.checkEventRefsLocked(event); err != nil {
		return err
	}
	event.CreatedAt = current.CreatedAt
	event.ReportKey = current.ReportKey
	s.events[event.ID] = event
	return nil
}

func (s *MemoryStore) SetEventReport(_ context.Context, id, reportKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[id]
	if !ok {
		return ErrNotFound
	}
	event.ReportKey = reportKey
	event.UpdatedAt = time.Now().UTC()
	s.events[id] = event
	return nil
}

func (s *MemoryStore) DeleteEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return ErrNotFound
	}
	delete(s.events, id)
	return nil
}

// Notifications

func (s *MemoryStore) InsertNotification(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[n.UserID]; !ok {
		return ErrNotFound
	}
	s.notifications[n.ID] = n
	return nil
}

func (s *MemoryStore) ListNotifications(_ context.Context, userID string) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]Notification, 0)
	for _, n := range s.notifications {
		if n.UserID == userID {
			items = append(items, n)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

func (s *MemoryStore) MarkNotificationRead(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return ErrNotFound
	}
	n.IsRead = true
	s.notifications[id] = n
	return nil
}

func (s *MemoryStore) MarkAllNotificationsRead(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := 0
	for id, n := range s.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			s.notifications[id] = n
			updated++
		}
	}
	return updated, nil
}

func (s *MemoryStore) CountUnreadNotifications(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, n := range s.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

// Contacts

func (s *MemoryStore) InsertContact(_ context.Context, c Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts = append(s.contacts, c)
	return nil
}

func (s *MemoryStore) ListContacts(context.Context) ([]Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := append([]Contact(nil), s.contacts...)
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

func (s *MemoryStore) InsertBusinessContact(_ context.Context, c BusinessContact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.businessContacts = append(s.businessContacts, c)
	return nil
}

func (s *MemoryStore) ListBusinessContacts(context.Context) ([]BusinessContact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := append([]BusinessContact(nil), s.businessContacts...)
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

func (s *MemoryStore) Stats(context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := Stats{
		IdeasByStatus:    map[IdeaStatus]int{},
		Users:            len(s.users),
		Contacts:         len(s.contacts),
		BusinessContacts: len(s.businessContacts),
	}
	for _, idea := range s.ideas {
		stats.IdeasByStatus[idea.Status]++
	}
	return stats, nil
}
