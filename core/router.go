package core

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// RouterDeps bundles the collaborators handlers need.
type RouterDeps struct {
	Auth       AuthService
	Users      UserRepository
	Products   ProductRepository
	Categories CategoryRepository
	Banners    BannerRepository
	Offers     OfferRepository
	Stats      *StatsService
	Limiter    *RateLimiter
	CSRFStore  *sessions.CookieStore
}

// productView pairs a catalog item with its computed price block.
type productView struct {
	Product
	Pricing PriceResult `json:"pricing"`
}

// NewRouter constructs the Gin engine with routes wired.
func NewRouter(cfg Config, guard *SessionGuard, deps RouterDeps) *gin.Engine {
	startedAt := time.Now()
	r := gin.Default()

	// Global middleware: origin/CORS -> rate limit -> CSRF -> auth gate
	r.Use(OriginRefererMiddleware(cfg))
	if deps.Limiter != nil {
		r.Use(RateLimitMiddleware(deps.Limiter, deps.Stats))
	}
	if deps.CSRFStore != nil {
		r.Use(CSRFMiddleware(deps.CSRFStore))
	}
	r.Use(AdminGuard(guard))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	{
		api.GET("/products", func(c *gin.Context) {
			page, perPage, err := parsePagination(c.Query("page"), c.Query("per_page"))
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
				return
			}
			var categoryFilter *int64
			if cidStr := strings.TrimSpace(c.Query("category_id")); cidStr != "" {
				cid, err := strconv.ParseInt(cidStr, 10, 64)
				if err != nil || cid <= 0 {
					respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "category_id must be a positive integer")
					return
				}
				categoryFilter = &cid
			}

			ctx := c.Request.Context()
			items, total, err := deps.Products.List(ctx, categoryFilter, page, perPage)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch products")
				return
			}

			now := time.Now()
			views := make([]productView, 0, len(items))
			for i := range items {
				pricing, err := priceProduct(c, deps, &items[i], now)
				if err != nil {
					respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to compute price")
					return
				}
				views = append(views, productView{Product: items[i], Pricing: pricing})
			}
			c.JSON(http.StatusOK, listEnvelope(views, page, perPage, total))
		})

		api.GET("/products/:id", func(c *gin.Context) {
			id, err := strconv.ParseInt(c.Param("id"), 10, 64)
			if err != nil || id <= 0 {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
				return
			}
			ctx := c.Request.Context()
			p, err := deps.Products.Find(ctx, id)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					respondError(c, http.StatusNotFound, "NOT_FOUND", "product not found")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch product")
				return
			}

			pricing, err := priceProduct(c, deps, p, time.Now())
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to compute price")
				return
			}

			if deps.Stats != nil {
				deps.Stats.RecordProductView(ctx, p.ID)
			}
			c.JSON(http.StatusOK, productView{Product: *p, Pricing: pricing})
		})

		api.GET("/categories", func(c *gin.Context) {
			items, err := deps.Categories.List(c.Request.Context())
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch categories")
				return
			}
			c.JSON(http.StatusOK, gin.H{"categories": items})
		})

		api.GET("/banners", func(c *gin.Context) {
			items, err := deps.Banners.ListActive(c.Request.Context())
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch banners")
				return
			}
			c.JSON(http.StatusOK, gin.H{"banners": items})
		})

		admin := api.Group("/admin")

		admin.POST("/login", func(c *gin.Context) {
			var req struct {
				Email    string `json:"email"`
				Password string `json:"password"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}

			user, err := deps.Auth.Authenticate(req.Email, req.Password)
			if err != nil {
				log.Printf("login rejected email=%s ip=%s", req.Email, c.ClientIP())
				respondError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "wrong email or password")
				return
			}

			token, err := guard.Issue(user.ID, user.Email, user.Role, time.Now())
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to issue session")
				return
			}
			guard.SetSessionCookie(c.Writer, token)
			log.Printf("login ok user=%d email=%s", user.ID, user.Email)
			c.JSON(http.StatusOK, gin.H{"user": gin.H{"id": user.ID, "email": user.Email, "role": user.Role}})
		})

		admin.POST("/logout", func(c *gin.Context) {
			guard.ClearSessionCookie(c.Writer)
			c.Status(http.StatusNoContent)
		})

		admin.GET("/session", func(c *gin.Context) {
			claims := currentSession(c)
			if claims == nil {
				respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "login required")
				return
			}
			c.JSON(http.StatusOK, gin.H{"user": gin.H{
				"id":    claims.UserID(),
				"email": claims.Email,
				"role":  claims.Role,
			}})
		})

		admin.POST("/products", func(c *gin.Context) {
			in, err := productInputFromForm(c, cfg)
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
				return
			}
			p, err := deps.Products.Create(c.Request.Context(), in)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create product")
				return
			}
			c.JSON(http.StatusCreated, p)
		})

		admin.PATCH("/products/:id", func(c *gin.Context) {
			id, err := strconv.ParseInt(c.Param("id"), 10, 64)
			if err != nil || id <= 0 {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
				return
			}
			in, err := productInputFromForm(c, cfg)
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
				return
			}
			ctx := c.Request.Context()
			if in.ImagePath == "" {
				// keep the existing image when no new file is uploaded
				current, err := deps.Products.Find(ctx, id)
				if err != nil {
					if errors.Is(err, pgx.ErrNoRows) {
						respondError(c, http.StatusNotFound, "NOT_FOUND", "product not found")
						return
					}
					respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch product")
					return
				}
				in.ImagePath = current.ImagePath
			}
			p, err := deps.Products.Update(ctx, id, in)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					respondError(c, http.StatusNotFound, "NOT_FOUND", "product not found")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to update product")
				return
			}
			c.JSON(http.StatusOK, p)
		})

		admin.DELETE("/products/:id", func(c *gin.Context) {
			id, err := strconv.ParseInt(c.Param("id"), 10, 64)
			if err != nil || id <= 0 {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
				return
			}
			if err := deps.Products.Delete(c.Request.Context(), id); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to delete product")
				return
			}
			c.Status(http.StatusNoContent)
		})

		admin.GET("/offers", func(c *gin.Context) {
			page, perPage, err := parsePagination(c.Query("page"), c.Query("per_page"))
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
				return
			}
			items, total, err := deps.Offers.List(c.Request.Context(), page, perPage)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch offers")
				return
			}
			c.JSON(http.StatusOK, listEnvelope(items, page, perPage, total))
		})

		admin.POST("/offers", func(c *gin.Context) {
			in, err := bindOfferInput(c)
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
				return
			}
			o, err := deps.Offers.Create(c.Request.Context(), in)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create offer")
				return
			}
			c.JSON(http.StatusCreated, o)
		})

		admin.PATCH("/offers/:id", func(c *gin.Context) {
			id, err := strconv.ParseInt(c.Param("id"), 10, 64)
			if err != nil || id <= 0 {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
				return
			}
			in, err := bindOfferInput(c)
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
				return
			}
			o, err := deps.Offers.Update(c.Request.Context(), id, in)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					respondError(c, http.StatusNotFound, "NOT_FOUND", "offer not found")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to update offer")
				return
			}
			c.JSON(http.StatusOK, o)
		})

		admin.DELETE("/offers/:id", func(c *gin.Context) {
			id, err := strconv.ParseInt(c.Param("id"), 10, 64)
			if err != nil || id <= 0 {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
				return
			}
			if err := deps.Offers.Delete(c.Request.Context(), id); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to delete offer")
				return
			}
			c.Status(http.StatusNoContent)
		})

		admin.POST("/categories", func(c *gin.Context) {
			var req struct {
				Name string `json:"name"`
				Slug string `json:"slug"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Slug) == "" {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "name and slug are required")
				return
			}
			cat, err := deps.Categories.Create(c.Request.Context(), req.Name, req.Slug)
			if err != nil {
				if strings.Contains(err.Error(), "duplicate") || strings.Contains(err.Error(), "unique") {
					respondError(c, http.StatusConflict, "CONFLICT", "slug already exists")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create category")
				return
			}
			c.JSON(http.StatusCreated, cat)
		})

		admin.PATCH("/categories/:id", func(c *gin.Context) {
			id, err := strconv.ParseInt(c.Param("id"), 10, 64)
			if err != nil || id <= 0 {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
				return
			}
			var req struct {
				Name string `json:"name"`
				Slug string `json:"slug"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			cat, err := deps.Categories.Update(c.Request.Context(), id, req.Name, req.Slug)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					respondError(c, http.StatusNotFound, "NOT_FOUND", "category not found")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to update category")
				return
			}
			c.JSON(http.StatusOK, cat)
		})

		admin.DELETE("/categories/:id", func(c *gin.Context) {
			id, err := strconv.ParseInt(c.Param("id"), 10, 64)
			if err != nil || id <= 0 {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
				return
			}
			if err := deps.Categories.Delete(c.Request.Context(), id); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to delete category")
				return
			}
			c.Status(http.StatusNoContent)
		})

		admin.GET("/banners", func(c *gin.Context) {
			page, perPage, err := parsePagination(c.Query("page"), c.Query("per_page"))
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
				return
			}
			items, total, err := deps.Banners.List(c.Request.Context(), page, perPage)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch banners")
				return
			}
			c.JSON(http.StatusOK, listEnvelope(items, page, perPage, total))
		})

		admin.POST("/banners", func(c *gin.Context) {
			b, err := bannerFromForm(c, cfg)
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
				return
			}
			out, err := deps.Banners.Create(c.Request.Context(), b)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create banner")
				return
			}
			c.JSON(http.StatusCreated, out)
		})

		admin.PATCH("/banners/:id", func(c *gin.Context) {
			id, err := strconv.ParseInt(c.Param("id"), 10, 64)
			if err != nil || id <= 0 {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
				return
			}
			b, err := bannerFromForm(c, cfg)
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
				return
			}
			out, err := deps.Banners.Update(c.Request.Context(), id, b)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					respondError(c, http.StatusNotFound, "NOT_FOUND", "banner not found")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to update banner")
				return
			}
			c.JSON(http.StatusOK, out)
		})

		admin.DELETE("/banners/:id", func(c *gin.Context) {
			id, err := strconv.ParseInt(c.Param("id"), 10, 64)
			if err != nil || id <= 0 {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
				return
			}
			if err := deps.Banners.Delete(c.Request.Context(), id); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to delete banner")
				return
			}
			c.Status(http.StatusNoContent)
		})

		admin.GET("/users", func(c *gin.Context) {
			page, perPage, err := parsePagination(c.Query("page"), c.Query("per_page"))
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
				return
			}
			items, total, err := deps.Users.List(c.Request.Context(), page, perPage)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch users")
				return
			}
			c.JSON(http.StatusOK, listEnvelope(items, page, perPage, total))
		})

		admin.GET("/stats/overview", func(c *gin.Context) {
			if deps.Stats == nil {
				respondError(c, http.StatusServiceUnavailable, "UNAVAILABLE", "stats not configured")
				return
			}
			overview, err := deps.Stats.Overview(c.Request.Context())
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to load stats")
				return
			}
			c.JSON(http.StatusOK, overview)
		})

		admin.GET("/system/status", func(c *gin.Context) {
			st, err := CollectSystemStatus(c.Request.Context(), deps.Stats, startedAt)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to load system status")
				return
			}
			c.JSON(http.StatusOK, st)
		})
	}

	return r
}

// priceProduct fetches candidate offers and resolves the price block.
func priceProduct(c *gin.Context, deps RouterDeps, p *Product, now time.Time) (PriceResult, error) {
	candidates, err := deps.Offers.CandidatesForProduct(c.Request.Context(), p.ID, p.CategoryID)
	if err != nil {
		return PriceResult{}, err
	}
	return ComputePrice(p, candidates, now)
}

// productInputFromForm parses a multipart product form, saving the uploaded
// image (if any) under cfg.UploadDir.
func productInputFromForm(c *gin.Context, cfg Config) (ProductInput, error) {
	var in ProductInput
	in.Name = strings.TrimSpace(c.PostForm("name"))
	if in.Name == "" {
		return in, errors.New("name is required")
	}
	in.Description = c.PostForm("description")

	if priceStr := strings.TrimSpace(c.PostForm("price")); priceStr != "" {
		price, err := decimal.NewFromString(priceStr)
		if err != nil || price.IsNegative() {
			return in, errors.New("price must be a non-negative decimal")
		}
		in.Price = decimal.NewNullDecimal(price)
	}

	if cidStr := strings.TrimSpace(c.PostForm("category_id")); cidStr != "" {
		cid, err := strconv.ParseInt(cidStr, 10, 64)
		if err != nil || cid <= 0 {
			return in, errors.New("category_id must be a positive integer")
		}
		in.CategoryID = &cid
	}

	for _, t := range strings.Split(c.PostForm("tags"), ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		tag, err := strconv.ParseInt(t, 10, 64)
		if err != nil || tag <= 0 {
			return in, errors.New("tags must be positive integers")
		}
		in.Tags = append(in.Tags, tag)
	}

	if fileHeader, err := c.FormFile("image"); err == nil {
		path, err := saveUploadedImage(c, cfg, fileHeader)
		if err != nil {
			return in, err
		}
		in.ImagePath = path
	}
	return in, nil
}

// bannerFromForm parses a multipart banner form.
func bannerFromForm(c *gin.Context, cfg Config) (Banner, error) {
	var b Banner
	b.Title = strings.TrimSpace(c.PostForm("title"))
	if b.Title == "" {
		return b, errors.New("title is required")
	}
	b.LinkURL = strings.TrimSpace(c.PostForm("link_url"))
	if sortStr := strings.TrimSpace(c.PostForm("sort_order")); sortStr != "" {
		order, err := strconv.Atoi(sortStr)
		if err != nil {
			return b, errors.New("sort_order must be an integer")
		}
		b.SortOrder = order
	}
	b.Active = true
	if activeStr := strings.TrimSpace(c.PostForm("active")); activeStr != "" {
		active, err := strconv.ParseBool(activeStr)
		if err != nil {
			return b, errors.New("active must be a boolean")
		}
		b.Active = active
	}
	if fileHeader, err := c.FormFile("image"); err == nil {
		path, err := saveUploadedImage(c, cfg, fileHeader)
		if err != nil {
			return b, err
		}
		b.ImagePath = path
	}
	return b, nil
}

const maxUploadSize = 8 * 1024 * 1024 // 8MB upload payload limit

// saveUploadedImage stores the uploaded file under cfg.UploadDir with a
// random name and returns the stored path.
func saveUploadedImage(c *gin.Context, cfg Config, fileHeader *multipart.FileHeader) (string, error) {
	if fileHeader.Size > maxUploadSize {
		return "", errors.New("image too large (max 8MB)")
	}
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".gif":
	default:
		return "", errors.New("unsupported image type")
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(cfg.UploadDir, randomHex(12)+ext)
	if err := c.SaveUploadedFile(fileHeader, path); err != nil {
		return "", err
	}
	return path, nil
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		for i := range b {
			b[i] = byte(i + 1)
		}
	}
	return hex.EncodeToString(b)
}

// bindOfferInput validates the offer payload shared by create and update.
func bindOfferInput(c *gin.Context) (OfferInput, error) {
	var req struct {
		Title        string  `json:"title"`
		DiscountType string  `json:"discount_type"`
		DiscountVal  string  `json:"discount_val"`
		StartAt      *string `json:"start_at"`
		EndAt        *string `json:"end_at"`
		ProductID    *int64  `json:"product_id"`
		CategoryID   *int64  `json:"category_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		return OfferInput{}, errors.New("invalid json")
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return OfferInput{}, errors.New("title is required")
	}
	if req.DiscountType != DiscountPercent && req.DiscountType != DiscountAmount {
		return OfferInput{}, errors.New("discount_type must be PERCENT or AMOUNT")
	}
	val, err := decimal.NewFromString(strings.TrimSpace(req.DiscountVal))
	if err != nil || !val.IsPositive() {
		return OfferInput{}, errors.New("discount_val must be a positive decimal")
	}
	if req.ProductID == nil && req.CategoryID == nil {
		return OfferInput{}, errors.New("offer must target a product or a category")
	}
	for _, ts := range []*string{req.StartAt, req.EndAt} {
		if ts == nil {
			continue
		}
		if _, err := time.Parse(time.RFC3339, *ts); err != nil {
			return OfferInput{}, errors.New("timestamps must be RFC3339")
		}
	}

	return OfferInput{
		Title:        req.Title,
		DiscountType: req.DiscountType,
		DiscountVal:  val.String(),
		StartAt:      req.StartAt,
		EndAt:        req.EndAt,
		ProductID:    req.ProductID,
		CategoryID:   req.CategoryID,
	}, nil
}

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

func parsePagination(pageStr, perPageStr string) (int, int, error) {
	page := 1
	perPage := defaultPerPage
	if strings.TrimSpace(pageStr) != "" {
		p, err := strconv.Atoi(pageStr)
		if err != nil || p <= 0 {
			return 0, 0, errors.New("page must be a positive integer")
		}
		page = p
	}
	if strings.TrimSpace(perPageStr) != "" {
		p, err := strconv.Atoi(perPageStr)
		if err != nil || p <= 0 {
			return 0, 0, errors.New("per_page must be a positive integer")
		}
		if p > maxPerPage {
			p = maxPerPage
		}
		perPage = p
	}
	return page, perPage, nil
}
