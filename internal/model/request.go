package model

import (
	"strings"
	"time"
)

// ErrorCode is a machine-readable outcome code surfaced to callers.
type ErrorCode string

const (
	CodeCompanyNotFound       ErrorCode = "COMPANY_NOT_FOUND"
	CodeProviderRateLimited   ErrorCode = "PROVIDER_RATE_LIMITED"
	CodeProviderUnavailable   ErrorCode = "PROVIDER_UNAVAILABLE"
	CodeNoQualifiedCandidates ErrorCode = "NO_QUALIFIED_CANDIDATES"
	CodeInvalidRequest        ErrorCode = "INVALID_REQUEST"
)

// SellerProfile describes the product being sold.
type SellerProfile struct {
	ProductName      string   `json:"productName,omitempty"`
	SolutionCategory string   `json:"solutionCategory,omitempty"`
	TargetRoles      []string `json:"targetRoles,omitempty"`
	Industry         string   `json:"industry,omitempty"`
}

// Options tune a single request. Zero values fall back to configured defaults.
type Options struct {
	MaxGroupSize  int     `json:"maxGroupSize,omitempty"`
	MinConfidence float64 `json:"minConfidence,omitempty"`
	Refresh       bool    `json:"refresh,omitempty"`
	SkipValidate  bool    `json:"skipValidation,omitempty"`
}

// Request asks for the buyer group of a company.
type Request struct {
	CompanyName   string        `json:"companyName"`
	Domain        string        `json:"domain,omitempty"`
	SellerProfile SellerProfile `json:"sellerProfile"`
	Options       Options       `json:"options"`
}

// Normalize trims whitespace on the identifying fields.
func (r *Request) Normalize() {
	r.CompanyName = strings.TrimSpace(r.CompanyName)
	r.Domain = strings.TrimSpace(r.Domain)
	r.SellerProfile.ProductName = strings.TrimSpace(r.SellerProfile.ProductName)
	r.SellerProfile.SolutionCategory = strings.TrimSpace(r.SellerProfile.SolutionCategory)
	r.SellerProfile.Industry = strings.TrimSpace(r.SellerProfile.Industry)
}

// Warning records a degraded stage.
type Warning struct {
	Stage   Stage  `json:"stage"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Warning codes.
const (
	WarnQueryFailed       = "QUERY_FAILED"
	WarnBatchDropped      = "ENRICH_BATCH_DROPPED"
	WarnLowConfidence     = "LOW_CONFIDENCE_RESOLUTION"
	WarnRateLimited       = string(CodeProviderRateLimited)
	WarnUnderfilled       = "GROUP_UNDERFILLED"
	WarnValidationOutage  = "VALIDATION_UNAVAILABLE"
	WarnContactWaterfall  = "CONTACT_LOOKUP_FAILED"
	WarnCandidatesCapped  = "CANDIDATES_CAPPED"
	WarnCacheUnavailable  = "CACHE_UNAVAILABLE"
	WarnNoQualified       = string(CodeNoQualifiedCandidates)
	WarnMembersDropped    = "MEMBERS_DROPPED"
	WarnCompanyCacheWrite = "COMPANY_CACHE_WRITE_FAILED"
	WarnCachedResult      = "CACHED_RESULT"
)

// Response is the result of a buyer-group request.
type Response struct {
	RunID            string         `json:"runId,omitempty"`
	Company          Company        `json:"company"`
	BuyerGroup       *BuyerGroup    `json:"buyerGroup"`
	Summary          CompanySummary `json:"summary"`
	Warnings         []Warning      `json:"warnings"`
	Code             ErrorCode      `json:"code,omitempty"`
	GeneratedAt      time.Time      `json:"generatedAt"`
	ProcessingTimeMs int64          `json:"processingTimeMs"`
	Cached           bool           `json:"cached"`
}
