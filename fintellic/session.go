package fintellic

import (
	"encoding/json"
	"fmt"
	"sync"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/golang/glog"
)

const minPasswordLength = 8

// invariant: Authenticated == (ByJwt != "")
type Session struct {
	UserId        Id
	UserAuth      string
	Username      string
	ByJwt         string
	Authenticated bool
}

type SessionChangeFunction = func(session *Session)

// SessionStore gates all authenticated reads. It is the only writer of the
// gateway's ambient bearer credential; the credential lifecycle is exactly
// the session lifecycle.
type SessionStore struct {
	api   *FintellicApi
	prefs PreferenceStore

	stateLock sync.Mutex
	session   *Session

	changeCallbacks *CallbackList[SessionChangeFunction]
}

func NewSessionStore(api *FintellicApi, prefs PreferenceStore) *SessionStore {
	return &SessionStore{
		api:             api,
		prefs:           prefs,
		changeCallbacks: NewCallbackList[SessionChangeFunction](),
	}
}

func (self *SessionStore) Session() *Session {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	if self.session == nil {
		return nil
	}
	session := *self.session
	return &session
}

// returns a function to remove the callback
func (self *SessionStore) AddChangeCallback(changeCallback SessionChangeFunction) func() {
	return self.changeCallbacks.Add(changeCallback)
}

func (self *SessionStore) Login(userAuth string, password string) (*Session, error) {
	// local validation does not contact the gateway and does not mutate state
	if userAuth == "" || password == "" {
		return nil, &ValidationError{
			Message: "user auth and password are required",
		}
	}

	result, err := self.api.AuthLoginWithPasswordSync(&AuthLoginWithPasswordArgs{
		UserAuth: userAuth,
		Password: password,
	})
	if err != nil {
		// a failed login never destroys an already authenticated session
		return nil, err
	}

	return self.activate(result.ByJwt, result.User)
}

func (self *SessionStore) Register(userAuth string, password string, username string) (*Session, error) {
	if userAuth == "" || username == "" {
		return nil, &ValidationError{
			Message: "user auth and username are required",
		}
	}
	if len(password) < minPasswordLength {
		return nil, &ValidationError{
			Message: fmt.Sprintf("password must be at least %d characters", minPasswordLength),
		}
	}

	result, err := self.api.AuthCreateAccountSync(&AuthCreateAccountArgs{
		UserAuth: userAuth,
		Password: password,
		Username: username,
	})
	if err != nil {
		return nil, err
	}
	if result.Error != nil {
		if result.Error.AccountExists {
			// the caller is expected to offer a switch to login
			return nil, &ValidationError{
				StatusCode: 409,
				Message:    result.Error.Message,
			}
		}
		return nil, &ValidationError{
			Message: result.Error.Message,
		}
	}

	// account creation performs an implicit login
	return self.activate(result.ByJwt, result.User)
}

func (self *SessionStore) SocialLogin(provider string, authJwt string) (*Session, error) {
	result, err := self.api.AuthSocialLoginSync(&AuthSocialLoginArgs{
		Provider: provider,
		AuthJwt:  authJwt,
	})
	if err != nil {
		return nil, err
	}

	return self.activate(result.ByJwt, result.User)
}

// RestoreSession hydrates a persisted session at process start without a
// network call. A stale token is detected lazily on the first
// authenticated gateway call.
func (self *SessionStore) RestoreSession() (*Session, error) {
	byJwt, hasJwt, err := self.prefs.Get(PrefKeyAuthToken)
	if err != nil {
		return nil, err
	}
	userJson, hasUser, err := self.prefs.Get(PrefKeyUser)
	if err != nil {
		return nil, err
	}
	if !hasJwt || !hasUser {
		return nil, nil
	}

	var user ApiUser
	if err := json.Unmarshal([]byte(userJson), &user); err != nil {
		// a corrupt persisted user is treated as no session
		glog.Infof("[session]restore discard corrupt user = %s\n", err)
		self.prefs.Remove(PrefKeyAuthToken, PrefKeyUser)
		return nil, nil
	}

	if user.UserId == (Id{}) {
		// fall back to the token claims
		if byJwtClaims, err := ParseByJwtUnverified(byJwt); err == nil {
			user.UserId = byJwtClaims.UserId
		}
	}

	session := &Session{
		UserId:        user.UserId,
		UserAuth:      user.UserAuth,
		Username:      user.Username,
		ByJwt:         byJwt,
		Authenticated: true,
	}

	self.stateLock.Lock()
	self.session = session
	self.stateLock.Unlock()

	self.api.SetByJwt(byJwt)
	self.notify(session)

	sessionCopy := *session
	return &sessionCopy, nil
}

func (self *SessionStore) Logout() error {
	self.stateLock.Lock()
	self.session = nil
	self.stateLock.Unlock()

	self.api.SetByJwt("")

	err := self.prefs.Remove(PrefKeyAuthToken, PrefKeyUser)
	self.notify(nil)
	return err
}

func (self *SessionStore) activate(byJwt string, user *ApiUser) (*Session, error) {
	if byJwt == "" {
		return nil, &AuthError{
			Message: "missing token in auth result",
		}
	}

	session := &Session{
		ByJwt:         byJwt,
		Authenticated: true,
	}
	if user != nil {
		session.UserId = user.UserId
		session.UserAuth = user.UserAuth
		session.Username = user.Username
	}

	self.stateLock.Lock()
	self.session = session
	self.stateLock.Unlock()

	self.api.SetByJwt(byJwt)

	if err := self.prefs.Set(PrefKeyAuthToken, byJwt); err != nil {
		return nil, err
	}
	userJson, err := json.Marshal(user)
	if err != nil {
		return nil, err
	}
	if err := self.prefs.Set(PrefKeyUser, string(userJson)); err != nil {
		return nil, err
	}

	self.notify(session)

	sessionCopy := *session
	return &sessionCopy, nil
}

func (self *SessionStore) notify(session *Session) {
	for _, changeCallback := range self.changeCallbacks.Get() {
		changeCallback(session)
	}
}

type ByJwt struct {
	UserId   Id
	UserAuth string
}

func ParseByJwtUnverified(byJwtStr string) (*ByJwt, error) {
	parser := gojwt.NewParser()
	token, _, err := parser.ParseUnverified(byJwtStr, gojwt.MapClaims{})
	if err != nil {
		return nil, err
	}

	claims := token.Claims.(gojwt.MapClaims)

	byJwt := &ByJwt{}

	// claims in a persisted token are untrusted; a wrong-typed claim is
	// skipped, never a panic
	if userIdStr, ok := claims["user_id"].(string); ok {
		if userId, err := ParseId(userIdStr); err == nil {
			byJwt.UserId = userId
		}
	}
	if userAuth, ok := claims["user_auth"].(string); ok {
		byJwt.UserAuth = userAuth
	}

	return byJwt, nil
}
