package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

type CardHandler struct {
	cards *service.CardService
}

func NewCardHandler(cards *service.CardService) *CardHandler {
	return &CardHandler{cards: cards}
}

func (h *CardHandler) List(c *gin.Context) {
	cards, err := h.cards.ListCards(c.Request.Context(), currentUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	if cards == nil {
		cards = []domain.Card{}
	}
	c.JSON(http.StatusOK, cards)
}

func (h *CardHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	card, err := h.cards.GetCard(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *CardHandler) Add(c *gin.Context) {
	var in service.AddCardInput
	if err := c.ShouldBindJSON(&in); err != nil {
		message(c, http.StatusBadRequest, "invalid request body")
		return
	}
	card, err := h.cards.AddCard(c.Request.Context(), currentUserID(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Card added successfully",
		"card":    card,
	})
}

// Update accepts a partial attribute map. Ownership is checked before the
// allow-listed update is applied.
func (h *CardHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var attrs map[string]any
	if err := c.ShouldBindJSON(&attrs); err != nil {
		message(c, http.StatusBadRequest, "invalid request body")
		return
	}
	// Owners cannot reassign their card to another user or rebind its
	// subscription through this endpoint.
	delete(attrs, "subscription_id")

	if _, err := h.cards.GetCard(c.Request.Context(), currentUserID(c), id); err != nil {
		fail(c, err)
		return
	}
	card, err := h.cards.UpdateCard(c.Request.Context(), id, attrs)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Card updated successfully",
		"card":    card,
	})
}

func (h *CardHandler) SetDefault(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.cards.SetDefault(c.Request.Context(), currentUserID(c), id); err != nil {
		fail(c, err)
		return
	}
	message(c, http.StatusOK, "Card set as default successfully")
}

func (h *CardHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.cards.DeleteCard(c.Request.Context(), currentUserID(c), id); err != nil {
		fail(c, err)
		return
	}
	message(c, http.StatusOK, "Card deleted successfully")
}
