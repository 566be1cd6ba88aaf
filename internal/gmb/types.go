package gmb

import (
	"time"

	"gmb-connector/internal/common/errors"
)

// Result is the outcome of a best-effort read. Exactly one of Value and Err is
// set; LocationID names the location the read was issued for.
type Result[T any] struct {
	LocationID string
	Value      T
	Err        *errors.ClassifiedError
}

func (r Result[T]) OK() bool { return r.Err == nil }

func ok[T any](locationID string, v T) Result[T] {
	return Result[T]{LocationID: locationID, Value: v}
}

func failed[T any](locationID string, err *errors.ClassifiedError) Result[T] {
	return Result[T]{LocationID: locationID, Err: err}
}

// Account is a Business Profile account.
type Account struct {
	NameID      string `json:"nameId"`
	AccountName string `json:"accountName"`
	State       string `json:"state"`
	Type        string `json:"type"`
}

// AccountWithLocations is an account together with every location under it.
type AccountWithLocations struct {
	AccountName   string     `json:"accountName"`
	AccountNameID string     `json:"accountNameId"`
	Locations     []Location `json:"locations"`
}

// Location is the flattened view of a business location. NameID is the
// account name joined with the location name.
type Location struct {
	NameID      string `json:"locationNameId"`
	Name        string `json:"name"`
	Address     string `json:"address"`
	CanPost     bool   `json:"canPost"`
	IsPublished bool   `json:"isPublished"`
	IsVerified  bool   `json:"isVerified"`
}

type LocationsPage struct {
	Locations     []Location
	NextPageToken string
}

type PostalAddress struct {
	AddressLines       []string `json:"addressLines,omitempty"`
	Locality           string   `json:"locality,omitempty"`
	AdministrativeArea string   `json:"administrativeArea,omitempty"`
	RegionCode         string   `json:"regionCode,omitempty"`
	PostalCode         string   `json:"postalCode,omitempty"`
}

type accountsResponse struct {
	Accounts []struct {
		Name              string `json:"name"`
		AccountName       string `json:"accountName"`
		Type              string `json:"type"`
		VerificationState string `json:"verificationState"`
	} `json:"accounts"`
	NextPageToken string `json:"nextPageToken"`
}

type locationsResponse struct {
	Locations []struct {
		Name     string `json:"name"`
		Title    string `json:"title"`
		Metadata *struct {
			CanOperateLocalPost bool   `json:"canOperateLocalPost"`
			HasVoiceOfMerchant  bool   `json:"hasVoiceOfMerchant"`
			PlaceID             string `json:"placeId"`
		} `json:"metadata"`
		StorefrontAddress *PostalAddress `json:"storefrontAddress"`
	} `json:"locations"`
	NextPageToken string `json:"nextPageToken"`
}

// Posts

type TopicType string

const (
	TopicStandard TopicType = "STANDARD"
	TopicEvent    TopicType = "EVENT"
	TopicOffer    TopicType = "OFFER"
)

type CallToAction struct {
	ActionType string `json:"actionType"`
	URL        string `json:"url,omitempty"`
}

type Date struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

type TimeOfDay struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds,omitempty"`
	Nanos   int `json:"nanos,omitempty"`
}

type TimeInterval struct {
	StartDate *Date      `json:"startDate,omitempty"`
	StartTime *TimeOfDay `json:"startTime,omitempty"`
	EndDate   *Date      `json:"endDate,omitempty"`
	EndTime   *TimeOfDay `json:"endTime,omitempty"`
}

type PostEvent struct {
	Title    string        `json:"title,omitempty"`
	Schedule *TimeInterval `json:"schedule,omitempty"`
}

type PostOffer struct {
	CouponCode      string `json:"couponCode,omitempty"`
	RedeemOnlineURL string `json:"redeemOnlineUrl,omitempty"`
	TermsConditions string `json:"termsConditions,omitempty"`
}

type PostMetrics struct {
	LocalPostName string        `json:"localPostName"`
	MetricValues  []interface{} `json:"metricValues"`
}

// LocalPost is a post published on a location.
type LocalPost struct {
	Name         string        `json:"name,omitempty"`
	State        string        `json:"state,omitempty"`
	TopicType    TopicType     `json:"topicType,omitempty"`
	LanguageCode string        `json:"languageCode,omitempty"`
	Summary      string        `json:"summary"`
	CallToAction *CallToAction `json:"callToAction,omitempty"`
	CreateTime   string        `json:"createTime,omitempty"`
	UpdateTime   string        `json:"updateTime,omitempty"`
	Media        []MediaItem   `json:"media,omitempty"`
	Event        *PostEvent    `json:"event,omitempty"`
	Offer        *PostOffer    `json:"offer,omitempty"`
	Metrics      *PostMetrics  `json:"metrics,omitempty"`
}

// Created parses CreateTime. Unparseable or empty values yield the zero time.
func (p *LocalPost) Created() time.Time {
	t, err := time.Parse(time.RFC3339Nano, p.CreateTime)
	if err != nil {
		return time.Time{}
	}
	return t
}

type PostsPage struct {
	LocalPosts    []LocalPost `json:"localPosts"`
	NextPageToken string      `json:"nextPageToken,omitempty"`
}

type PostInsights struct {
	Name             string        `json:"name,omitempty"`
	LocalPostMetrics []PostMetrics `json:"localPostMetrics,omitempty"`
	TimeZone         string        `json:"timeZone,omitempty"`
}

// Reviews

type Reviewer struct {
	ProfilePhotoURL string `json:"profilePhotoUrl,omitempty"`
	DisplayName     string `json:"displayName,omitempty"`
	IsAnonymous     bool   `json:"isAnonymous,omitempty"`
}

type ReviewReply struct {
	Comment    string `json:"comment"`
	UpdateTime string `json:"updateTime,omitempty"`
}

// Review is a customer review of a location.
type Review struct {
	Name        string       `json:"name"`
	ReviewID    string       `json:"reviewId"`
	Reviewer    Reviewer     `json:"reviewer"`
	StarRating  string       `json:"starRating"`
	Comment     string       `json:"comment,omitempty"`
	CreateTime  string       `json:"createTime"`
	UpdateTime  string       `json:"updateTime"`
	ReviewReply *ReviewReply `json:"reviewReply,omitempty"`
}

type ReviewsPage struct {
	Reviews          []Review `json:"reviews"`
	AverageRating    float64  `json:"averageRating,omitempty"`
	TotalReviewCount int      `json:"totalReviewCount,omitempty"`
	NextPageToken    string   `json:"nextPageToken,omitempty"`
}

// Questions

type Author struct {
	DisplayName     string `json:"displayName,omitempty"`
	ProfilePhotoURL string `json:"profilePhotoUrl,omitempty"`
	Type            string `json:"type,omitempty"`
}

type Answer struct {
	Name        string `json:"name"`
	Author      Author `json:"author"`
	UpvoteCount int    `json:"upvoteCount,omitempty"`
	Text        string `json:"text"`
	CreateTime  string `json:"createTime,omitempty"`
	UpdateTime  string `json:"updateTime,omitempty"`
}

// Question is a customer question on a location, with its top answers.
type Question struct {
	Name             string   `json:"name"`
	Author           Author   `json:"author"`
	UpvoteCount      int      `json:"upvoteCount,omitempty"`
	Text             string   `json:"text"`
	CreateTime       string   `json:"createTime"`
	UpdateTime       string   `json:"updateTime"`
	TopAnswers       []Answer `json:"topAnswers,omitempty"`
	TotalAnswerCount int      `json:"totalAnswerCount,omitempty"`
}

type QuestionsPage struct {
	Questions     []Question `json:"questions"`
	TotalSize     int        `json:"totalSize,omitempty"`
	NextPageToken string     `json:"nextPageToken,omitempty"`
}

// Media

type MediaFormat string

const (
	MediaPhoto MediaFormat = "PHOTO"
	MediaVideo MediaFormat = "VIDEO"
)

// DefaultMediaCategory is the location association used when none is given.
const DefaultMediaCategory = "EXTERIOR"

type MediaDataRef struct {
	ResourceName string `json:"resourceName"`
}

type MediaDimensions struct {
	WidthPixels  int `json:"widthPixels"`
	HeightPixels int `json:"heightPixels"`
}

type LocationAssociation struct {
	Category string `json:"category,omitempty"`
}

type MediaItem struct {
	Name                string               `json:"name,omitempty"`
	Description         string               `json:"description,omitempty"`
	ThumbnailURL        string               `json:"thumbnailUrl,omitempty"`
	Dimensions          *MediaDimensions     `json:"dimensions,omitempty"`
	GoogleURL           string               `json:"googleUrl,omitempty"`
	SourceURL           string               `json:"sourceUrl,omitempty"`
	MediaFormat         MediaFormat          `json:"mediaFormat"`
	DataRef             *MediaDataRef        `json:"dataRef,omitempty"`
	LocationAssociation *LocationAssociation `json:"locationAssociation,omitempty"`
}
