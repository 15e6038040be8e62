package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func parseOptionalSnowflakeID(value string) (*snowflake.ID, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, true
	}
	parsed, err := snowflake.ParseString(trimmed)
	if err != nil || parsed <= 0 {
		return nil, false
	}
	return &parsed, true
}

func parseSnowflakeID(value string) (snowflake.ID, bool) {
	id, ok := parseOptionalSnowflakeID(value)
	if !ok || id == nil {
		return 0, false
	}
	return *id, true
}

func pathID(c *gin.Context) (snowflake.ID, bool) {
	return parseSnowflakeID(c.Param("id"))
}
