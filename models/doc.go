// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - CreatePollRequest: title, description, options, visibility, schedule
  - UpdatePollRequest: partial poll update (pointer fields)
  - CastVoteRequest: pollOptionId plus optional demographics
  - PreRegisterRequest: names, email, password, optional referral token
  - RegisterRequest: email, verification code
  - LoginRequest: email, password
  - UpdateProfileRequest: names and/or new password
  - CreateInviteRequest: invitee email
  - PostChatMessageRequest: content

# Response Types

All endpoints wrap their payload in APIResponse:

	{"success": true, "message": "...", "data": ...}

Payload types:

  - CastVoteData: updated option tally plus points for authed voters
  - PollOptionView: option with image stripped for list views
  - PollTallies: per-option counts and total votes
  - VoterSummary: voter identity without IP addresses
  - ShareLinkResponse, InviteResponse

# Domain Types

Documents stored in MongoDB:

  - Poll: metadata, options with embedded vote counts, chat log
  - PollOption: label, optional image, running count
  - ChatMessage: author, content, timestamp
  - Vote: poll/option refs, voter ID or IP, location
  - User: credentials, role, points, referral state

# Constants

Roles:

	RoleAdmin      = "admin"
	RoleSubscriber = "subscriber"
	RoleUser       = "user"

Behavior limits:

	ChatLogCap          = 200  // messages retained per poll
	AnonymousVoteQuota  = 5    // free votes per client IP
	ReferralBonusPoints = 10   // one-time referrer credit
*/
package models
