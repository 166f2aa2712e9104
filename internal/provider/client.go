package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Endpoints — базовые адреса API 115 (подменяются в тестах).
type Endpoints struct {
	QrcodeAPI   string // https://qrcodeapi.115.com
	PassportAPI string // https://passportapi.115.com
	WebAPI      string // https://webapi.115.com
}

// Client — HTTP-клиент 115. Пустой credential — только неавторизованные
// QR-операции; WithCredential возвращает копию-«залогиненный хэндл».
type Client struct {
	http       *http.Client
	ep         Endpoints
	credential string // cookie-строка "UID=...; CID=...; SEID=..."
}

func NewClient(ep Endpoints) *Client {
	return &Client{
		http: &http.Client{Timeout: 30 * time.Second},
		ep:   ep,
	}
}

// WithCredential — новый хэндл с привязанной cookie-строкой.
func (c *Client) WithCredential(credential string) *Client {
	cp := *c
	cp.credential = credential
	return &cp
}

func (c *Client) Credential() string { return c.credential }

// envelope — конверт ответов 115: state/code/message + полезная нагрузка
// в data. state бывает и bool, и числом — разбираем гибко.
type envelope struct {
	State   flexBool        `json:"state"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

type flexBool bool

func (b *flexBool) UnmarshalJSON(raw []byte) error {
	switch strings.TrimSpace(string(raw)) {
	case "true", "1":
		*b = true
	default:
		*b = false
	}
	return nil
}

// check превращает ошибку, о которой сообщил провайдер, в error.
func (e *envelope) check() error {
	if bool(e.State) {
		return nil
	}
	msg := e.Message
	if msg == "" {
		msg = e.Error
	}
	return fmt.Errorf("provider error (code=%d): %s", e.Code, msg)
}

func (c *Client) doJSON(ctx context.Context, method, rawURL string, form url.Values) (json.RawMessage, error) {
	var body io.Reader
	if form != nil {
		body = bytes.NewBufferString(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.credential != "" {
		req.Header.Set("Cookie", c.credential)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider http %d", resp.StatusCode)
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("provider response decode: %w", err)
	}
	if err := env.check(); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// QrcodeToken — данные для QR-входа (uid/time/sign + содержимое кода).
type QrcodeToken struct {
	UID           string `json:"uid"`
	Time          int64  `json:"time"`
	Sign          string `json:"sign"`
	QrcodeContent string `json:"qrcode_content"`
}

// QrcodeStatus — состояние сканирования, как его сообщает провайдер.
type QrcodeStatus struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
}

// QrcodeToken выпускает новый QR-challenge для клиента типа app.
func (c *Client) QrcodeToken(ctx context.Context, app string) (*QrcodeToken, error) {
	u := fmt.Sprintf("%s/api/1.0/%s/1.0/token/", c.ep.QrcodeAPI, url.PathEscape(app))
	data, err := c.doJSON(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var payload struct {
		UID    string `json:"uid"`
		Time   int64  `json:"time"`
		Sign   string `json:"sign"`
		Qrcode string `json:"qrcode"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("qrcode token decode: %w", err)
	}
	return &QrcodeToken{
		UID:           payload.UID,
		Time:          payload.Time,
		Sign:          payload.Sign,
		QrcodeContent: payload.Qrcode,
	}, nil
}

// QrcodeImage — PNG-байты QR-кода по uid. Чистый passthrough.
func (c *Client) QrcodeImage(ctx context.Context, uid string) ([]byte, error) {
	u := fmt.Sprintf("%s/api/1.0/web/1.0/qrcode?uid=%s", c.ep.QrcodeAPI, url.QueryEscape(uid))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider http %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// QrcodeStatus опрашивает состояние сканирования challenge.
func (c *Client) QrcodeStatus(ctx context.Context, uid string, t int64, sign string) (*QrcodeStatus, error) {
	q := url.Values{}
	q.Set("uid", uid)
	q.Set("time", strconv.FormatInt(t, 10))
	q.Set("sign", sign)
	u := fmt.Sprintf("%s/get/status/?%s", c.ep.QrcodeAPI, q.Encode())
	data, err := c.doJSON(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var st QrcodeStatus
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("qrcode status decode: %w", err)
	}
	return &st, nil
}

// QrcodeResult обменивает подтверждённый challenge на cookie-набор.
func (c *Client) QrcodeResult(ctx context.Context, uid, app string) (map[string]string, error) {
	u := fmt.Sprintf("%s/app/1.0/%s/1.0/login/qrcode/", c.ep.PassportAPI, url.PathEscape(app))
	form := url.Values{}
	form.Set("account", uid)
	data, err := c.doJSON(ctx, http.MethodPost, u, form)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Cookie map[string]string `json:"cookie"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("qrcode result decode: %w", err)
	}
	if len(payload.Cookie) == 0 {
		return nil, fmt.Errorf("qrcode result: empty cookie set")
	}
	return payload.Cookie, nil
}

// UserMyInfo — профиль владельца credential. Требует залогиненный хэндл.
func (c *Client) UserMyInfo(ctx context.Context) (json.RawMessage, error) {
	return c.doJSON(ctx, http.MethodGet, c.ep.WebAPI+"/user/my_info", nil)
}

// FsIndexInfo — сводка хранилища; kind пробрасывается параметром
// count_space_nums, как того ждёт API.
func (c *Client) FsIndexInfo(ctx context.Context, kind int) (json.RawMessage, error) {
	u := fmt.Sprintf("%s/files/index_info?count_space_nums=%d", c.ep.WebAPI, kind)
	return c.doJSON(ctx, http.MethodGet, u, nil)
}
