package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"maildesk/utils"
)

// LocaleMiddleware detects the request language (query, cookie, then
// Accept-Language) and stores a localizer in the request context.
func LocaleMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		lang := c.Query("lang")
		if lang == "" {
			lang = c.Cookies("lang")
		}
		if lang == "" {
			if strings.HasPrefix(c.Get("Accept-Language"), "ja") {
				lang = "ja"
			}
		}
		if lang != "ja" {
			lang = "en"
		}

		c.Locals("localizer", utils.GetLocalizer(lang))
		c.Locals("lang", lang)

		return c.Next()
	}
}
