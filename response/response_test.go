package response

import (
	"encoding/json"
	stderrors "errors"
	"net/http/httptest"
	"testing"
	"time"

	aiserrors "github.com/aisgo/vlog-gateway/errors"
	"github.com/gofiber/fiber/v3"
)

func TestError_BizError(t *testing.T) {
	t.Parallel()

	app := fiber.New()
	app.Get("/err", func(c fiber.Ctx) error {
		return Error(c, aiserrors.New(aiserrors.ErrCodeInvalidArgument, "bad request"))
	})

	req := httptest.NewRequest("GET", "/err", nil)
	resp, err := app.Test(req, fiber.TestConfig{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("unexpected status: got=%d want=%d", resp.StatusCode, fiber.StatusBadRequest)
	}

	var got Result
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Code != int(aiserrors.ErrCodeInvalidArgument) {
		t.Fatalf("unexpected code: got=%d want=%d", got.Code, int(aiserrors.ErrCodeInvalidArgument))
	}
	if got.Msg != "bad request" {
		t.Fatalf("unexpected msg: got=%q want=%q", got.Msg, "bad request")
	}
}

func TestError_UpstreamCodesAndPlainErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err    error
		status int
	}{
		{aiserrors.New(aiserrors.ErrCodePoolExhausted, "pool"), fiber.StatusServiceUnavailable},
		{aiserrors.New(aiserrors.ErrCodeTimeout, "slow"), fiber.StatusGatewayTimeout},
		{aiserrors.New(aiserrors.ErrCodeTransport, "refused"), fiber.StatusBadGateway},
		{stderrors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tc := range cases {
		app := fiber.New()
		app.Get("/err", func(c fiber.Ctx) error { return Error(c, tc.err) })

		resp, err := app.Test(httptest.NewRequest("GET", "/err", nil), fiber.TestConfig{Timeout: 2 * time.Second})
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != tc.status {
			t.Fatalf("%v: unexpected status: got=%d want=%d", tc.err, resp.StatusCode, tc.status)
		}
	}
}

func TestErrorWithCode_OverridesMapping(t *testing.T) {
	t.Parallel()

	app := fiber.New()
	app.Get("/limited", func(c fiber.Ctx) error {
		return ErrorWithCode(c, fiber.StatusTooManyRequests, aiserrors.New(aiserrors.ErrCodeUnavailable, "slow down"))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/limited", nil), fiber.TestConfig{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	var got Result
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Code != int(aiserrors.ErrCodeUnavailable) || got.Msg != "slow down" {
		t.Fatalf("unexpected body: %+v", got)
	}
}

func TestOkWithData_NilDataIsEmptyObject(t *testing.T) {
	t.Parallel()

	app := fiber.New()
	app.Get("/ok", func(c fiber.Ctx) error { return OkWithData(c, nil) })

	resp, err := app.Test(httptest.NewRequest("GET", "/ok", nil), fiber.TestConfig{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if string(raw["data"]) != "{}" {
		t.Fatalf("expected empty object, got %s", raw["data"])
	}
}
