package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	jokeURL  = "https://v2.jokeapi.dev/joke/Any?blacklistFlags=nsfw,religious,political,racist,sexist,explicit&type=single"
	quoteURL = "https://zenquotes.io/api/random"
	tarotURL = "https://tarot-api-3hv5.onrender.com/api/v1/cards/random"
)

var proxyClient = &http.Client{Timeout: 10 * time.Second}

// fetchJSON gets url and decodes the response body into out.
func fetchJSON(url string, out any) error {
	resp, err := proxyClient.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

// handleJoke proxies a random one-liner for the chat's /joke command.
func (s *server) handleJoke(c *gin.Context) {
	var joke map[string]any
	if err := fetchJSON(jokeURL, &joke); err != nil {
		s.log.Warn("joke proxy failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}
	c.JSON(http.StatusOK, joke)
}

// handleQuote proxies a random quote; the upstream wraps it in an array.
func (s *server) handleQuote(c *gin.Context) {
	var quotes []map[string]any
	if err := fetchJSON(quoteURL, &quotes); err != nil || len(quotes) == 0 {
		s.log.Warn("quote proxy failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}
	c.JSON(http.StatusOK, quotes[0])
}

// handleTarot proxies a random tarot card; the upstream nests it under "cards".
func (s *server) handleTarot(c *gin.Context) {
	var result struct {
		Cards []map[string]any `json:"cards"`
	}
	if err := fetchJSON(tarotURL, &result); err != nil || len(result.Cards) == 0 {
		s.log.Warn("tarot proxy failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}
	c.JSON(http.StatusOK, result.Cards[0])
}
