package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/safemind/go-crisis-alerts/internal/registry"
)

// Registry is the slice of the connection registry the stream endpoint needs.
type Registry interface {
	Connect(identity string, conn registry.Conn)
	Disconnect(identity string, conn registry.Conn)
	Subscribe(agencyID int64, identity string)
	Unsubscribe(agencyID int64, identity string)
}

// stream attaches the caller to the registry and relays alerts as
// server-sent events until the client goes away or the connection is
// pruned. A client may hold several streams open at once; each gets
// its own buffered connection.
func (h *Handler) stream(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	identity := strconv.FormatInt(userID, 10)

	var agencyID int64
	if a := c.Query("agency_id"); a != "" {
		agencyID, err = strconv.ParseInt(a, 10, 64)
		if err != nil || agencyID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid agency_id"})
			return
		}
	}

	conn := registry.NewChanConn(h.sendBuffer)
	h.registry.Connect(identity, conn)
	if agencyID > 0 {
		h.registry.Subscribe(agencyID, identity)
	}
	defer h.registry.Disconnect(identity, conn)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-conn.Out():
			if !ok {
				return false
			}
			c.SSEvent("message", string(msg))
			return true
		case <-conn.Closed():
			return false
		case <-ctx.Done():
			return false
		}
	})
}
