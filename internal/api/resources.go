package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// Announcement is a broadcast notice authored by an admin.
type Announcement struct {
	ID        int64  `json:"id"`
	Author    string `json:"author"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
}

// Task is a shared to-do item.
type Task struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	Assignee    string `json:"assignee,omitempty"`
	CreatedBy   string `json:"createdBy"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

// TaskUpdate carries the optional fields of a task update; empty fields
// are left untouched server-side.
type TaskUpdate struct {
	Title       string
	Description string
	Status      string
	Assignee    string
}

// FileInfo describes a file announced for transfer over the side channel.
type FileInfo struct {
	FileID    string `json:"fileId"`
	Filename  string `json:"filename"`
	FileSize  int64  `json:"fileSize"`
	Owner     string `json:"owner"`
	TCPHost   string `json:"tcpHost"`
	TCPPort   int    `json:"tcpPort"`
	CreatedAt string `json:"createdAt"`
}

// User is one entry of the server's user registry.
type User struct {
	ID          int64  `json:"id"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName,omitempty"`
	LastSeen    string `json:"lastSeen,omitempty"`
	IsAdmin     bool   `json:"isAdmin"`
	Status      string `json:"status,omitempty"`
}

// LinkPreview holds server-fetched metadata for a URL seen in chat.
type LinkPreview struct {
	ID          int64  `json:"id"`
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	IconURL     string `json:"iconUrl,omitempty"`
}

// Announcements lists all announcements.
func (c *Client) Announcements(ctx context.Context) ([]Announcement, error) {
	var out []Announcement
	err := c.getJSON(ctx, "get announcements", "/announcements", nil, &out)
	return out, err
}

// CreateAnnouncement publishes a new announcement.
func (c *Client) CreateAnnouncement(ctx context.Context, author, title, content string) (Announcement, error) {
	form := url.Values{
		"author":  {author},
		"title":   {title},
		"content": {content},
	}
	var out Announcement
	err := c.postForm(ctx, "create announcement", "/announcements", form, &out)
	return out, err
}

// Tasks lists all tasks.
func (c *Client) Tasks(ctx context.Context) ([]Task, error) {
	var out []Task
	err := c.getJSON(ctx, "get tasks", "/tasks", nil, &out)
	return out, err
}

// CreateTask creates a task; description and assignee may be empty.
func (c *Client) CreateTask(ctx context.Context, title, description, createdBy, assignee string) (Task, error) {
	form := url.Values{
		"title":     {title},
		"createdBy": {createdBy},
	}
	if description != "" {
		form.Set("description", description)
	}
	if assignee != "" {
		form.Set("assignee", assignee)
	}
	var out Task
	err := c.postForm(ctx, "create task", "/tasks", form, &out)
	return out, err
}

// UpdateTask applies the non-empty fields of upd to the given task.
func (c *Client) UpdateTask(ctx context.Context, id int64, upd TaskUpdate) (Task, error) {
	form := url.Values{}
	if upd.Title != "" {
		form.Set("title", upd.Title)
	}
	if upd.Description != "" {
		form.Set("description", upd.Description)
	}
	if upd.Status != "" {
		form.Set("status", upd.Status)
	}
	if upd.Assignee != "" {
		form.Set("assignee", upd.Assignee)
	}

	req := fmt.Sprintf("/tasks/%d", id)
	var out Task
	err := c.putForm(ctx, "update task", req, form, &out)
	return out, err
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.delete(ctx, "delete task", "/tasks/"+strconv.FormatInt(id, 10))
}

// Files lists the announced files.
func (c *Client) Files(ctx context.Context) ([]FileInfo, error) {
	var out []FileInfo
	err := c.getJSON(ctx, "get files", "/files", nil, &out)
	return out, err
}

// Users lists the server's user registry.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	var out []User
	err := c.getJSON(ctx, "get users", "/users", nil, &out)
	return out, err
}

// Preview asks the server for link metadata.
func (c *Client) Preview(ctx context.Context, target string) (LinkPreview, error) {
	var out LinkPreview
	err := c.getJSON(ctx, "link preview", "/link/preview", url.Values{"url": {target}}, &out)
	return out, err
}
