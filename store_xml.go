package identity

import (
	"context"
	"encoding/xml"
	"strconv"
	"sync/atomic"

	"github.com/goliatone/go-errors"
)

// xmlUserDocument is the persisted layout: root element "users", one child
// element per identity with the fields stored as attributes.
type xmlUserDocument struct {
	XMLName xml.Name        `xml:"users"`
	Users   []xmlUserRecord `xml:"user"`
}

type xmlUserRecord struct {
	ID       int64  `xml:"id,attr"`
	Username string `xml:"username,attr"`
	Email    string `xml:"email,attr"`
	Password string `xml:"password,attr"`
	Roles    string `xml:"roles,attr"`
}

type xmlUserSerializer struct{}

var _ DocumentSerializer[*xmlUserDocument] = xmlUserSerializer{}

func (xmlUserSerializer) Empty() *xmlUserDocument {
	return &xmlUserDocument{}
}

func (xmlUserSerializer) Marshal(doc *xmlUserDocument) ([]byte, error) {
	data, err := xml.MarshalIndent(doc, "", "    ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), append(data, '\n')...), nil
}

func (xmlUserSerializer) Unmarshal(data []byte) (*xmlUserDocument, error) {
	doc := &xmlUserDocument{}
	if err := xml.Unmarshal(data, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// XMLUserStore is the file-backed credential store variant. The whole
// identity collection lives in one XML document; every read parses the
// document fresh and every write rewrites it under the document lock.
// Chosen for simplicity over performance, acceptable while the total user
// count stays small.
type XMLUserStore struct {
	file   *DocumentFile[*xmlUserDocument]
	nextID atomic.Int64
	logger Logger
}

var _ UserStore = (*XMLUserStore)(nil)

// NewXMLUserStore opens (or creates) the backing document and seeds the
// id counter from the highest persisted id.
func NewXMLUserStore(path string) (*XMLUserStore, error) {
	if path == "" {
		return nil, errors.New("users file path is required", errors.CategoryBadInput)
	}

	file, err := NewDocumentFile(path, xmlUserSerializer{})
	if err != nil {
		return nil, err
	}

	s := &XMLUserStore{
		file:   file,
		logger: defLogger{},
	}

	doc, err := file.Load()
	if err != nil {
		return nil, err
	}
	for _, rec := range doc.Users {
		s.observeID(rec.ID)
	}

	s.logger.Debug("opened users document %s with %d records", path, len(doc.Users))

	return s, nil
}

func (s *XMLUserStore) WithLogger(l Logger) *XMLUserStore {
	if l != nil {
		s.logger = l
	}
	return s
}

// Path returns the location of the backing document.
func (s *XMLUserStore) Path() string {
	return s.file.Path()
}

func (s *XMLUserStore) allocateID() int64 {
	return s.nextID.Add(1)
}

// observeID keeps the counter monotonic when records arrive with explicit
// ids, e.g. documents written by a previous process.
func (s *XMLUserStore) observeID(id int64) {
	for {
		cur := s.nextID.Load()
		if id <= cur || s.nextID.CompareAndSwap(cur, id) {
			return
		}
	}
}

func (s *XMLUserStore) FindByID(ctx context.Context, id int64) (*User, error) {
	return s.findBy(func(rec xmlUserRecord) bool { return rec.ID == id }, "id", strconv.FormatInt(id, 10))
}

func (s *XMLUserStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	return s.findBy(func(rec xmlUserRecord) bool { return rec.Username == username }, "username", username)
}

func (s *XMLUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.findBy(func(rec xmlUserRecord) bool { return rec.Email == email }, "email", email)
}

func (s *XMLUserStore) findBy(match func(xmlUserRecord) bool, field, value string) (*User, error) {
	doc, err := s.file.Load()
	if err != nil {
		return nil, err
	}

	for _, rec := range doc.Users {
		if match(rec) {
			return userFromXMLRecord(rec), nil
		}
	}

	return nil, notFound(field, value)
}

func (s *XMLUserStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, func(rec xmlUserRecord) bool { return rec.Username == username })
}

func (s *XMLUserStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, func(rec xmlUserRecord) bool { return rec.Email == email })
}

func (s *XMLUserStore) exists(_ context.Context, match func(xmlUserRecord) bool) (bool, error) {
	doc, err := s.file.Load()
	if err != nil {
		return false, err
	}

	for _, rec := range doc.Users {
		if match(rec) {
			return true, nil
		}
	}

	return false, nil
}

func (s *XMLUserStore) FindAll(ctx context.Context) ([]*User, error) {
	doc, err := s.file.Load()
	if err != nil {
		return nil, err
	}

	users := make([]*User, 0, len(doc.Users))
	for _, rec := range doc.Users {
		users = append(users, userFromXMLRecord(rec))
	}

	return users, nil
}

func (s *XMLUserStore) Save(ctx context.Context, user *User) (*User, error) {
	prepareUserDefaults(user)

	if user.ID == 0 {
		user.ID = s.allocateID()
	} else {
		s.observeID(user.ID)
	}

	rec := xmlRecordFromUser(user)
	err := s.file.Update(func(doc *xmlUserDocument) (*xmlUserDocument, error) {
		for i, existing := range doc.Users {
			if existing.ID == rec.ID {
				doc.Users[i] = rec
				return doc, nil
			}
		}
		doc.Users = append(doc.Users, rec)
		return doc, nil
	})

	if err != nil {
		return nil, err
	}

	return user, nil
}

func (s *XMLUserStore) DeleteByID(ctx context.Context, id int64) error {
	return s.file.Update(func(doc *xmlUserDocument) (*xmlUserDocument, error) {
		for i, existing := range doc.Users {
			if existing.ID == id {
				doc.Users = append(doc.Users[:i], doc.Users[i+1:]...)
				break
			}
		}
		return doc, nil
	})
}

func xmlRecordFromUser(user *User) xmlUserRecord {
	return xmlUserRecord{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Password: user.PasswordHash,
		Roles:    joinRoles(user.Roles),
	}
}

func userFromXMLRecord(rec xmlUserRecord) *User {
	return &User{
		ID:           rec.ID,
		Username:     rec.Username,
		Email:        rec.Email,
		PasswordHash: rec.Password,
		Roles:        splitRoles(rec.Roles),
	}
}
