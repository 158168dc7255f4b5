package outbox

import "example.com/chizen/internal/events"

// schemaCatalog holds the JSON Schema registered for each event type.
var schemaCatalog = map[string]string{
	events.TypeUserRegistered: `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "UserRegistered",
  "type": "object",
  "required": ["user_id", "email", "username", "fitness_level", "registered_at"],
  "properties": {
    "user_id": {"type": "string"},
    "email": {"type": "string"},
    "username": {"type": "string"},
    "fitness_level": {"type": "string", "enum": ["beginner", "intermediate", "advanced"]},
    "registered_at": {"type": "string", "format": "date-time"}
  }
}`,
	events.TypeRoutineCompleted: `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "RoutineCompleted",
  "type": "object",
  "required": ["routine_id", "user_id", "completed_blocks", "total_blocks", "xp_awarded", "full_completion", "streak_current", "streak_longest", "total_xp", "level", "completed_at"],
  "properties": {
    "routine_id": {"type": "string"},
    "user_id": {"type": "string"},
    "completed_blocks": {"type": "integer", "minimum": 0},
    "total_blocks": {"type": "integer", "minimum": 1},
    "xp_awarded": {"type": "integer", "minimum": 0},
    "full_completion": {"type": "boolean"},
    "streak_current": {"type": "integer", "minimum": 0},
    "streak_longest": {"type": "integer", "minimum": 0},
    "transition": {"type": "string"},
    "total_xp": {"type": "integer", "minimum": 0},
    "level": {"type": "integer", "minimum": 1},
    "completed_at": {"type": "string", "format": "date-time"}
  }
}`,
	events.TypeNewsletterSubscribed: `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "NewsletterSubscribed",
  "type": "object",
  "required": ["email", "topics", "subscribed_at"],
  "properties": {
    "email": {"type": "string"},
    "name": {"type": "string"},
    "topics": {"type": "array", "items": {"type": "string"}},
    "subscribed_at": {"type": "string", "format": "date-time"}
  }
}`,
	events.TypeAdminBroadcast: `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "AdminBroadcast",
  "type": "object",
  "required": ["broadcast_id", "message", "audience", "created_by", "created_at"],
  "properties": {
    "broadcast_id": {"type": "string"},
    "message": {"type": "string"},
    "audience": {"type": "string"},
    "created_by": {"type": "string"},
    "created_at": {"type": "string", "format": "date-time"}
  }
}`,
}
