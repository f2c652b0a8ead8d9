package fieldcase

// Per-entity field maps, storage name -> application name. Most columns
// follow the generic transform; the explicit entries pin the ones that
// don't (initialisms, legacy names) and document each entity's surface.

// InviteFields covers the invites table.
var InviteFields = FieldMap{
	"id":            "id",
	"email":         "email",
	"name":          "name",
	"invite_type":   "inviteType",
	"resource_type": "resourceType",
	"resource_id":   "resourceId",
	"status":        "status",
	"invited_by":    "invitedBy",
	"created_at":    "createdAt",
	"expires_at":    "expiresAt",
	"accepted_at":   "acceptedAt",
}

// OTPFields covers the otp_verifications table. "otp_code" would fall back
// to "otpCode" anyway; listed for completeness of the audit surface.
var OTPFields = FieldMap{
	"id":         "id",
	"email":      "email",
	"otp_code":   "otpCode",
	"verified":   "verified",
	"created_at": "createdAt",
	"expires_at": "expiresAt",
}

// ProductFields covers the products table.
var ProductFields = FieldMap{
	"id":          "id",
	"title":       "title",
	"description": "description",
	"image_url":   "imageUrl",
	"sort_order":  "sortOrder",
	"created_at":  "createdAt",
	"updated_at":  "updatedAt",
}

// VideoFields covers the videos table.
var VideoFields = FieldMap{
	"id":               "id",
	"product_id":       "productId",
	"title":            "title",
	"description":      "description",
	"video_url":        "videoUrl",
	"duration_seconds": "durationSeconds",
	"sort_order":       "sortOrder",
	"created_at":       "createdAt",
	"updated_at":       "updatedAt",
}

// PlaylistFields covers the playlists table.
var PlaylistFields = FieldMap{
	"id":          "id",
	"title":       "title",
	"description": "description",
	"video_ids":   "videoIds",
	"sort_order":  "sortOrder",
	"created_at":  "createdAt",
	"updated_at":  "updatedAt",
}
