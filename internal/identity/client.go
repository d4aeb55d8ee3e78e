package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"schoolhub/internal/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Известные ошибки провайдера идентификации.
var (
	ErrUsernameExists = errors.New("пользователь с таким username уже существует в провайдере")
	ErrPasswordPwned  = errors.New("пароль скомпрометирован, провайдер отклонил его")
	ErrUserNotFound   = errors.New("пользователь не найден в провайдере")
)

// Client — HTTP-клиент провайдера идентификации. Провайдер владеет учетными
// данными (логин, пароль), локальная база хранит только зеркальные записи.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClientFromEnv() *Client {
	return &Client{
		baseURL: os.Getenv("IDENTITY_API_URL"),
		apiKey:  os.Getenv("IDENTITY_API_KEY"),
		http:    &http.Client{Timeout: 20 * time.Second},
	}
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 20 * time.Second},
	}
}

// NewUser — данные для создания пользователя у провайдера.
type NewUser struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

// UserUpdate — обновление пользователя. Пароль меняется только если задан.
type UserUpdate struct {
	Username  string `json:"username"`
	Password  string `json:"password,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// User — пользователь в провайдере идентификации.
type User struct {
	ID string `json:"id"`
}

type providerError struct {
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// CreateUser создает пользователя у провайдера и возвращает его ID.
// Сетевые ошибки и 5xx ретраятся с экспоненциальным backoff, идемпотентность
// обеспечивается заголовком Idempotency-Key.
func (c *Client) CreateUser(ctx context.Context, nu NewUser) (*User, error) {
	body, err := json.Marshal(nu)
	if err != nil {
		return nil, err
	}
	idempotencyKey := uuid.NewString()

	var user User
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/users", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Idempotency-Key", idempotencyKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return err // сетевая ошибка — ретраим
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("провайдер вернул статус %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(decodeProviderError(resp))
		}
		if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	if err := c.retry(ctx, operation); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser обновляет данные пользователя у провайдера.
func (c *Client) UpdateUser(ctx context.Context, id string, upd UserUpdate) error {
	body, err := json.Marshal(upd)
	if err != nil {
		return err
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.baseURL+"/v1/users/"+id, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("провайдер вернул статус %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(decodeProviderError(resp))
		}
		return nil
	}

	return c.retry(ctx, operation)
}

// DeleteUser удаляет пользователя у провайдера. Используется и как
// компенсация при неудачной локальной записи после удачного CreateUser.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/v1/users/"+id, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("провайдер вернул статус %d", resp.StatusCode)
		}
		if resp.StatusCode == http.StatusNotFound {
			// Пользователя уже нет — для компенсации это успех.
			return nil
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(decodeProviderError(resp))
		}
		return nil
	}

	return c.retry(ctx, operation)
}

func (c *Client) retry(ctx context.Context, operation backoff.Operation) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = 15 * time.Second
	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, 3), ctx))
}

func decodeProviderError(resp *http.Response) error {
	var pe providerError
	if err := json.NewDecoder(resp.Body).Decode(&pe); err == nil && len(pe.Errors) > 0 {
		switch pe.Errors[0].Code {
		case "form_identifier_exists":
			return ErrUsernameExists
		case "form_password_pwned":
			return ErrPasswordPwned
		}
		if resp.StatusCode == http.StatusNotFound {
			return ErrUserNotFound
		}
		return fmt.Errorf("ошибка провайдера: %s", pe.Errors[0].Message)
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrUserNotFound
	}
	return fmt.Errorf("провайдер вернул статус %d", resp.StatusCode)
}

// Compensate выполняет компенсирующее удаление пользователя после неудачной
// локальной записи. Возвращает false, если компенсация не удалась и требуется
// ручная очистка. Это не транзакция, а best-effort откат.
func (c *Client) Compensate(userID string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.DeleteUser(ctx, userID); err != nil {
		logger.Log.Error("ТРЕБУЕТСЯ РУЧНАЯ ОЧИСТКА: осиротевший пользователь в провайдере идентификации",
			zap.String("user_id", userID), zap.Error(err))
		return false
	}
	return true
}
